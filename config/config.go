package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr             string
	DBUrl            string
	TokenSecret      string
	TokenTTL         time.Duration
	SheetID          string
	SheetCredentials string
	MirrorInterval   time.Duration
	Debug            bool
}

func ParseFlags() (cfg Config, err error) {
	_ = godotenv.Load()

	var host string
	flag.StringVar(&host, "host", envOr("HOST", "0.0.0.0"), "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", envOrUint("PORT", 80), "listen port number (default 80)")
	flag.StringVar(&cfg.DBUrl, "db-url", envOr("DB_URL", "formbox.sqlite"), "path to SQLite3 DB file (default formbox.sqlite)")
	flag.StringVar(&cfg.TokenSecret, "token-secret", envOr("TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	flag.UintVar(&ttl, "token-ttl", envOrUint("TOKEN_TTL", 120), "token TTL in seconds (default 120)")
	flag.StringVar(&cfg.SheetID, "sheet-id", envOr("SHEET_ID", ""), "spreadsheet id for submission mirroring (empty disables mirroring)")
	flag.StringVar(&cfg.SheetCredentials, "sheet-credentials", envOr("SHEET_CREDENTIALS", "google_sheets_key.json"), "path to Google service account key file")
	var mirrorEvery uint
	flag.UintVar(&mirrorEvery, "mirror-interval", envOrUint("MIRROR_INTERVAL", 15), "mirror outbox poll interval in seconds (default 15)")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	cfg.MirrorInterval = time.Duration(mirrorEvery) * time.Second

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrUint(key string, fallback uint) uint {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return fallback
}
