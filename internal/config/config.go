package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses lease and sweep durations
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, integers for costs,
// durations for lease and sweep timing.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign admin JWTs
	AccessTTLMin   int           // admin access token time-to-live in minutes
	AdminUser      string        // admin login name
	AdminPassHash  string        // bcrypt hash of the admin password
	RPCEndpoint    string        // Solana RPC endpoint URL
	SellerPubkey   string        // base58 address receiving mint payments
	SellerKeyPath  string        // path to the seller keypair JSON file
	CollectionMint string        // base58 address of the verified collection mint
	PriceLamports  uint64        // mint price in lamports
	LockTTL        time.Duration // lifetime of a mint reservation lock
	ResourceCID    string        // IPFS CID of the metadata/image bundle
	IPFSGateway    string        // IPFS gateway base URL
	ReapEvery      time.Duration // interval between scheduled reaper sweeps
	NotifyEvery    time.Duration // interval between refund notifier runs
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Chain parameters
// are required because every reservation needs them; timing values fall
// back to the documented defaults.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		AdminUser:      must("ADMIN_USER"),
		AdminPassHash:  must("ADMIN_PASS_HASH"),
		RPCEndpoint:    must("SOLANA_RPC_ENDPOINT"),
		SellerPubkey:   must("SELLER_PUBLIC_KEY"),
		SellerKeyPath:  must("SELLER_KEYPAIR_PATH"),
		CollectionMint: must("COLLECTION_MINT"),
		PriceLamports:  envUint64("NFT_PRICE_LAMPORTS", 1_500_000_000), // 1.5 SOL
		LockTTL:        envDur("LOCK_TTL", 3*time.Minute),
		ResourceCID:    must("RESOURCE_CID"),
		IPFSGateway:    envStr("IPFS_GATEWAY", "https://ipfs.io"),
		ReapEvery:      envDur("REAPER_INTERVAL", time.Minute),
		NotifyEvery:    envDur("REFUND_NOTIFY_INTERVAL", 30*time.Second),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envUint64 reads an optional unsigned integer variable, falling back to
// the default on absence or parse failure.
func envUint64(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Printf("invalid uint for %s: %q, using default %d", key, v, def)
		return def
	}
	return n
}
