// internal/stdlib/fs.go
package stdlib

import (
	"os"

	"github.com/pkg/errors"

	"rill/internal/fault"
	"rill/internal/value"
)

func init() {
	Register("read_file", 1, func(args []value.Value) (value.Value, error) {
		path, ok := args[0].(string)
		if !ok {
			return nil, typeFault("read_file", "string", args[0])
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fault.Of(errors.Wrap(err, "read_file"))
		}
		return string(data), nil
	})
	Register("write_file", 2, func(args []value.Value) (value.Value, error) {
		path, ok1 := args[0].(string)
		data, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fault.New(fault.TypeFault, "write_file: path and contents must be strings")
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			return nil, fault.Of(errors.Wrap(err, "write_file"))
		}
		return nil, nil
	})
}
