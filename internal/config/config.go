package config

import (
	"os"
	"strconv"
)

type Config struct {
	AppPort       string
	DBDSN         string
	JWTSecret     string
	JWTExpiresMin int
	IDEncryptKey  string

	RedisAddr     string
	RedisPassword string

	PartnerAuthURL      string
	PartnerTokenURL     string
	PartnerUserInfoURL  string
	PartnerClientID     string
	PartnerClientSecret string
	PartnerRedirectURL  string

	FrontendBaseURL string
	PublicBaseURL   string
}

func Load() Config {
	expires, _ := strconv.Atoi(get("JWT_EXPIRES_MIN", "10080"))
	return Config{
		AppPort:       get("APP_PORT", "8080"),
		DBDSN:         must("DB_DSN"),
		JWTSecret:     must("JWT_SECRET"),
		JWTExpiresMin: expires,
		IDEncryptKey:  must("ID_ENCRYPT_KEY"),

		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),

		PartnerAuthURL:      get("PARTNER_AUTH_URL", ""),
		PartnerTokenURL:     get("PARTNER_TOKEN_URL", ""),
		PartnerUserInfoURL:  get("PARTNER_USERINFO_URL", ""),
		PartnerClientID:     get("PARTNER_CLIENT_ID", ""),
		PartnerClientSecret: get("PARTNER_CLIENT_SECRET", ""),
		PartnerRedirectURL:  get("PARTNER_REDIRECT_URL", ""),

		FrontendBaseURL: get("FRONTEND_BASE_URL", "http://localhost:3000"),
		PublicBaseURL:   get("APP_BASE_URL", ""),
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
