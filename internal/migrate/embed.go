package migrate

import (
	"embed"
	"io/fs"
)

//go:embed sql seeds
var embedded embed.FS

// Embedded returns the built-in migrations and seeds filesystems.
func Embedded() (migrations fs.FS, seeds fs.FS) {
	migrations, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	seeds, err = fs.Sub(embedded, "seeds")
	if err != nil {
		panic(err)
	}
	return migrations, seeds
}
