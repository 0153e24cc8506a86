// internal/stdlib/database.go
//
// Database builtins over database/sql. Connections are managed by id in a
// process-wide table; queries return rows as arrays of maps. These calls
// are synchronous by design: the core evaluator has no async model.
package stdlib

import (
	"database/sql"
	"fmt"
	"sync"

	// common database drivers
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"rill/internal/fault"
	"rill/internal/value"
)

type dbManager struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

var databases = &dbManager{conns: map[string]*sql.DB{}}

var driverNames = map[string]string{
	"sqlite":    "sqlite",
	"mysql":     "mysql",
	"postgres":  "postgres",
	"sqlserver": "sqlserver",
}

func init() {
	Register("db_connect", 3, dbConnect)
	Register("db_close", 1, dbClose)
	Register("db_query", -1, dbQuery)
	Register("db_execute", -1, dbExecute)
}

// db_connect(id, type, dsn)
func dbConnect(args []value.Value) (value.Value, error) {
	id, ok1 := args[0].(string)
	kind, ok2 := args[1].(string)
	dsn, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, fault.New(fault.TypeFault, "db_connect: id, type and dsn must be strings")
	}
	driver, ok := driverNames[kind]
	if !ok {
		return nil, fault.New(fault.TypeFault, "db_connect: unknown database type %q", kind)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fault.Of(errors.Wrapf(err, "db_connect %s", id))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fault.Of(errors.Wrapf(err, "db_connect %s", id))
	}
	databases.mu.Lock()
	if old, ok := databases.conns[id]; ok {
		old.Close()
	}
	databases.conns[id] = db
	databases.mu.Unlock()
	return id, nil
}

func dbClose(args []value.Value) (value.Value, error) {
	id, ok := args[0].(string)
	if !ok {
		return nil, typeFault("db_close", "string", args[0])
	}
	databases.mu.Lock()
	db, found := databases.conns[id]
	delete(databases.conns, id)
	databases.mu.Unlock()
	if found {
		db.Close()
	}
	return found, nil
}

func lookupDB(name string, args []value.Value) (*sql.DB, string, []interface{}, error) {
	if len(args) < 2 {
		return nil, "", nil, fault.New(fault.TypeFault, "%s expects at least id and query", name)
	}
	id, ok1 := args[0].(string)
	query, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil, "", nil, fault.New(fault.TypeFault, "%s: id and query must be strings", name)
	}
	databases.mu.Lock()
	db, found := databases.conns[id]
	databases.mu.Unlock()
	if !found {
		return nil, "", nil, fault.New(fault.ReferenceFault, "%s: no connection %q", name, id)
	}
	params := make([]interface{}, 0, len(args)-2)
	for _, a := range args[2:] {
		params = append(params, a)
	}
	return db, query, params, nil
}

// db_query(id, query, params...) -> array of maps
func dbQuery(args []value.Value) (value.Value, error) {
	db, query, params, err := lookupDB("db_query", args)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "db_query"))
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "db_query"))
	}
	var out []value.Value
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fault.Of(errors.Wrap(err, "db_query"))
		}
		items := make(map[string]value.Value, len(cols))
		for i, col := range cols {
			items[col] = sqlValue(raw[i])
		}
		out = append(out, value.NewMap(items))
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Of(errors.Wrap(err, "db_query"))
	}
	return value.NewArray(out), nil
}

// db_execute(id, query, params...) -> rows affected
func dbExecute(args []value.Value) (value.Value, error) {
	db, query, params, err := lookupDB("db_execute", args)
	if err != nil {
		return nil, err
	}
	res, err := db.Exec(query, params...)
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "db_execute"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return float64(0), nil
	}
	return float64(n), nil
}

func sqlValue(raw interface{}) value.Value {
	switch v := raw.(type) {
	case nil:
		return nil
	case bool:
		return v
	case int64:
		return float64(v)
	case float64:
		return v
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
