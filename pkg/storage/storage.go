// Package storage persists partitions, fitted models and metric runs.
// Payloads are JSON, optionally compressed and encrypted at rest using NaCl secretbox.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MrCodeEU/eigenauth/pkg/dataset"
	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

const (
	partitionsDir = "partitions"
	modelsDir     = "models"
	runsDir       = "runs"

	payloadExt   = ".json"
	encryptedExt = ".enc"
)

// ErrNotFound is returned when no object with the requested name is stored.
var ErrNotFound = errors.New("not found")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// ErrInvalidName is returned for names that are empty or contain path separators.
var ErrInvalidName = errors.New("invalid name")

// Options configures a FileStore.
type Options struct {
	Compression       Compression
	EncryptionEnabled bool
}

// FileStore keeps each object in its own file under dataDir:
// <kind>/<name>.json[.zst|.lz4][.enc]. The suffixes record how the file was
// written, so a store reads files regardless of its own write options.
type FileStore struct {
	dataDir       string
	opts          Options
	encryptionKey [KeySize]byte
}

// NewFileStore creates the store directories under dataDir.
func NewFileStore(dataDir string, opts Options) (*FileStore, error) {
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if _, err := ParseCompression(string(opts.Compression)); err != nil {
		return nil, err
	}

	fs := &FileStore{dataDir: dataDir, opts: opts}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	fs.encryptionKey = key

	for _, dir := range []string{partitionsDir, modelsDir, runsDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return fs, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted data to this specific machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte

	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}

	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))

	identity.WriteString("eigenauth-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

// SavePartition stores a partition under name, replacing any previous one.
func (fs *FileStore) SavePartition(name string, p *dataset.Partition) error {
	return fs.save(partitionsDir, name, newPartitionRecord(p))
}

// LoadPartition loads the partition stored under name.
func (fs *FileStore) LoadPartition(name string) (*dataset.Partition, error) {
	var rec partitionRecord
	if err := fs.load(partitionsDir, name, &rec); err != nil {
		return nil, err
	}
	return rec.partition()
}

// SaveModel stores a fitted model under name, usually <partition>.<method>.
func (fs *FileStore) SaveModel(name string, m *eigenface.Model) error {
	return fs.save(modelsDir, name, newModelRecord(m))
}

// LoadModel loads the model stored under name.
func (fs *FileStore) LoadModel(name string) (*eigenface.Model, error) {
	var rec modelRecord
	if err := fs.load(modelsDir, name, &rec); err != nil {
		return nil, err
	}
	return rec.model()
}

// DeleteModel removes every stored variant of the model name. A missing model is not an error.
func (fs *FileStore) DeleteModel(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	paths, err := fs.existing(modelsDir, name)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", name, err)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete model %s: %w", name, err)
		}
	}
	if len(paths) > 0 {
		logging.Debugf("Deleted %s/%s", modelsDir, name)
	}
	return nil
}

// SaveRun stores a run keyed by its method, replacing the previous run of that method.
func (fs *FileStore) SaveRun(run *Run) error {
	return fs.save(runsDir, run.Method, run)
}

// LoadRun loads the latest run of method.
func (fs *FileStore) LoadRun(method string) (*Run, error) {
	var run Run
	if err := fs.load(runsDir, method, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the methods with a stored run, sorted.
func (fs *FileStore) ListRuns() ([]string, error) {
	return fs.list(runsDir)
}

// ListPartitions returns the names of stored partitions, sorted.
func (fs *FileStore) ListPartitions() ([]string, error) {
	return fs.list(partitionsDir)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (fs *FileStore) path(kind, name string) string {
	filename := name + payloadExt + fs.opts.Compression.extension()
	if fs.opts.EncryptionEnabled {
		filename += encryptedExt
	}
	return filepath.Join(fs.dataDir, kind, filename)
}

// existing returns every stored variant of name, whatever its suffixes.
func (fs *FileStore) existing(kind, name string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(fs.dataDir, kind, globEscape(name)+payloadExt+"*"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if n, _, _, ok := parseFilename(filepath.Base(m)); ok && n == name {
			out = append(out, m)
		}
	}
	return out, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// parseFilename splits <name>.json[.zst|.lz4][.enc].
func parseFilename(filename string) (name string, c Compression, encrypted, ok bool) {
	rest := filename
	if strings.HasSuffix(rest, encryptedExt) {
		encrypted = true
		rest = strings.TrimSuffix(rest, encryptedExt)
	}
	ext := filepath.Ext(rest)
	if ext != payloadExt {
		c, ok = compressionFromExtension(ext)
		if !ok {
			return "", "", false, false
		}
		rest = strings.TrimSuffix(rest, ext)
		if filepath.Ext(rest) != payloadExt {
			return "", "", false, false
		}
	} else {
		c = CompressionNone
	}
	name = strings.TrimSuffix(rest, payloadExt)
	return name, c, encrypted, name != ""
}

func (fs *FileStore) save(kind, name string, v interface{}) error {
	if err := validName(name); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	data, err = compress(data, fs.opts.Compression)
	if err != nil {
		return err
	}

	if fs.opts.EncryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", name, err)
		}
	}

	stale, err := fs.existing(kind, name)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", name, err)
	}

	path := fs.path(kind, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	for _, old := range stale {
		if old == path {
			continue
		}
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale %s: %w", filepath.Base(old), err)
		}
	}

	logging.Debugf("Saved %s/%s (%d bytes)", kind, name, len(data))
	return nil
}

func (fs *FileStore) load(kind, name string, v interface{}) error {
	if err := validName(name); err != nil {
		return err
	}

	paths, err := fs.existing(kind, name)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", name, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("%s %q: %w", strings.TrimSuffix(kind, "s"), name, ErrNotFound)
	}
	path := paths[0]
	_, c, encrypted, _ := parseFilename(filepath.Base(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if encrypted {
		data, err = fs.decrypt(data)
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", name, err)
		}
	}

	data, err = decompress(data, c)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}

	logging.Debugf("Loaded %s/%s", kind, name)
	return nil
}

func (fs *FileStore) list(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.dataDir, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, _, _, ok := parseFilename(entry.Name())
		if ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	encrypted := secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey)
	return encrypted, nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStore) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}
