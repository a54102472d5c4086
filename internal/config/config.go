package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for secret-picture.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Price    int64          `toml:"price"`       // fixed access price applied to newly listed items
	TTLSecs  int64          `toml:"request_ttl"` // access-request validity window in seconds
	Identity IdentityConfig `toml:"identity"`
	Sealer   SealerConfig   `toml:"sealer"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Blob     BlobConfig     `toml:"blob"`
}

// IdentityConfig holds paths to the principal's ed25519 key pair.
// The private key is stored passphrase-encrypted.
type IdentityConfig struct {
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// SealerConfig holds configuration for the sealed-value store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SealerConfig struct {
	Type          string `toml:"type"` // "age" (default) or "memory"
	RecipientPath string `toml:"recipient_path,omitempty"`
	IdentityPath  string `toml:"identity_path,omitempty"`
	StoreDir      string `toml:"store_dir,omitempty"`
}

// LedgerConfig represents configuration for the permission ledger.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LedgerConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BlobConfig represents configuration for the ciphertext blob store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Optional static credentials. When unset, the default AWS credential
	// chain applies.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// DefaultTTLSecs is the access-request validity window applied when the
// config does not set one.
const DefaultTTLSecs = 300

// DefaultPrice is the fixed access price applied when the config does not
// set one.
const DefaultPrice = 100

// NewConfig creates a new Config with the provided base directory and
// default key paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Price:   DefaultPrice,
		TTLSecs: DefaultTTLSecs,
		Identity: IdentityConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "identity.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "identity.key"),
		},
		Sealer: SealerConfig{
			Type:          "age",
			RecipientPath: filepath.Join(baseDir, "keys", "authority.pub"),
			IdentityPath:  filepath.Join(baseDir, "keys", "authority.key"),
			StoreDir:      filepath.Join(baseDir, "sealed"),
		},
		Ledger: LedgerConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Blob: BlobConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: filepath.Join(baseDir, "blobs"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
