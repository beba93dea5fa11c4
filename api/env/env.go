package env

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var cache = make(map[string]string)

func init() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// Get resolves a config key from the environment. If KEY_FILE is set the
// value is read from that file instead, so secrets can be mounted.
func Get(key string) string {
	val, exists := cache[key]
	if exists {
		return val
	}

	filename := viper.GetString(key + ".file")
	if filename == "" {
		return viper.GetString(key)
	}
	val, err := readSecret(filename)
	if err != nil {
		log.Printf("error reading secret: %s", err.Error())
	}
	//cache the resolved value so the file is only read once
	cache[key] = val
	return val
}

func Set(key string, val string) {
	cache[key] = val
}

func GetOr(key string, def string) string {
	res := Get(key)
	if res == "" {
		return def
	}
	return res
}

func GetInt(key string) int {
	return cast.ToInt(Get(key))
}

func GetIntOr(key string, def int) int {
	res := Get(key)
	if res == "" {
		return def
	}
	return cast.ToInt(res)
}

func GetStringArray(key, separator string) []string {
	val := Get(key)
	if val == "" {
		return nil
	}
	if separator == "" {
		separator = ","
	}
	return strings.Split(val, separator)
}

func readSecret(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
