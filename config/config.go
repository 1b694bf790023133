// Package config loads runtime settings for the tbleveldb binaries from
// the environment (optionally via a .env file), using viper.
package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// injected build metadata
var (
	APP_NAME    string = "tbleveldb"
	APP_VERSION string = "0.1.0"
)

// values changed by parameters from the environment
var (
	// TBLDB_DATA_DIR: directory holding the per-table databases.
	TBLDB_DATA_DIR string = "./data"

	// TBLDB_CODEC: row compression codec (raw, snappy, zstd, lz4).
	TBLDB_CODEC string = "snappy"

	// TBLDB_DEV_LOG: use human-readable development logging.
	TBLDB_DEV_LOG bool = false
)

// ImportEnv reads a local .env file (when present) and the process
// environment into the package-level variables above.
func ImportEnv() {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Panicln(fmt.Errorf("fatal error config file: %s", err))
		}
	}

	if v := viper.GetString("TBLDB_DATA_DIR"); v != "" {
		TBLDB_DATA_DIR = v
	}
	if v := viper.GetString("TBLDB_CODEC"); v != "" {
		TBLDB_CODEC = v
	}
	if viper.IsSet("TBLDB_DEV_LOG") {
		TBLDB_DEV_LOG = viper.GetBool("TBLDB_DEV_LOG")
	}
}
