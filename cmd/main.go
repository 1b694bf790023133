// Command tbleveldb is a small operational tool for poking at table
// databases: create a table, write a row, look it up, delete it. Rows
// are laid out as key bytes followed by an arbitrary payload.
//
//	tbleveldb create <table> <keylen>
//	tbleveldb put    <table> <key> <payload>
//	tbleveldb get    <table> <key>
//	tbleveldb del    <table> <key>
//	tbleveldb drop   <table>
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tbdingqi/tbleveldb/config"
	"github.com/tbdingqi/tbleveldb/engine"
	"github.com/tbdingqi/tbleveldb/internal/rowcodec"
	"github.com/tbdingqi/tbleveldb/pkg/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s create|put|get|del|drop <table> [args]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	config.ImportEnv()

	if config.TBLDB_DEV_LOG {
		logger.SetDefault(logger.NewDevelopment())
	} else {
		logger.SetDefault(logger.MustProduction())
	}
	defer logger.SyncDefault()

	if len(os.Args) < 3 {
		usage()
	}
	command, table := os.Args[1], os.Args[2]
	args := os.Args[3:]

	codecType, err := rowcodec.Parse(config.TBLDB_CODEC)
	if err != nil {
		logger.Fatal("bad codec configuration", "error", err)
	}

	eng := engine.New(
		engine.WithBaseDir(config.TBLDB_DATA_DIR),
		engine.WithCodec(rowcodec.New(codecType)),
		engine.WithLogger(logger.Default()),
	)
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("engine shutdown", "error", err)
		}
	}()

	if err := run(eng, command, table, args); err != nil {
		logger.Fatal("command failed", "command", command, "table", table, "error", err)
	}
}

func run(eng *engine.Engine, command, table string, args []string) error {
	switch command {
	case "create":
		if len(args) != 1 {
			usage()
		}
		keyLen, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad key length %q: %w", args[0], err)
		}
		return eng.Create(table, keySchema(keyLen))

	case "drop":
		return eng.Drop(table)

	case "put":
		if len(args) != 2 {
			usage()
		}
		key, payload := []byte(args[0]), []byte(args[1])
		return withTable(eng, table, len(key), func(tbl *engine.Table, sess *engine.Session) error {
			if err := tbl.BeginLock(sess, engine.LockWrite); err != nil {
				return err
			}
			if err := tbl.WriteRow(sess, append(key, payload...)); err != nil {
				return err
			}
			return tbl.EndLock(sess)
		})

	case "get":
		if len(args) != 1 {
			usage()
		}
		key := []byte(args[0])
		return withTable(eng, table, len(key), func(tbl *engine.Table, _ *engine.Session) error {
			row, err := tbl.Lookup(key)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", row[len(key):])
			return nil
		})

	case "del":
		if len(args) != 1 {
			usage()
		}
		key := []byte(args[0])
		return withTable(eng, table, len(key), func(tbl *engine.Table, sess *engine.Session) error {
			if err := tbl.BeginLock(sess, engine.LockWrite); err != nil {
				return err
			}
			if err := tbl.DeleteRow(sess, key); err != nil {
				return err
			}
			return tbl.EndLock(sess)
		})

	default:
		usage()
		return nil
	}
}

func keySchema(keyLen int) engine.Schema {
	return engine.Schema{
		KeyParts: []engine.KeyPart{{Offset: 0, Length: keyLen}},
		Unique:   true,
	}
}

func withTable(eng *engine.Engine, name string, keyLen int, fn func(*engine.Table, *engine.Session) error) error {
	tbl, err := eng.Open(name, keySchema(keyLen))
	if err != nil {
		return err
	}
	defer func() { _ = tbl.Close() }()

	return fn(tbl, engine.NewSession())
}
