package configs

import "os"

var Envs = struct {
	ADDR            string
	ALLOWED_ORIGINS string
	GIN_MODE        string
	STATIC_DIR      string
}{
	ADDR:            os.Getenv("ADDR"),
	ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
	GIN_MODE:        os.Getenv("GIN_MODE"),
	STATIC_DIR:      os.Getenv("STATIC_DIR"),
}
