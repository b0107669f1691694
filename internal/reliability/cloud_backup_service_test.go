package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/events"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	listErr error
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]StoredObject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []StoredObject
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, StoredObject{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjectStore) seed(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = []byte("archive")
}

// extractArchive unpacks a tar.gz into name -> contents.
func extractArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		contents, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = contents
	}
	return files
}

func archiveKey(ts time.Time) string {
	return archivePrefix + ts.Format(archiveTimeFormat) + ".tar.gz"
}

func TestCreateAndUploadBackupPacksDatabasesWithManifest(t *testing.T) {
	backupService, _ := newBackupFixture(t)
	store := &fakeObjectStore{}
	service := NewCloudBackupService(store, backupService, t.TempDir(), zerolog.Nop())

	info, err := service.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)

	require.Len(t, store.objects, 1)
	var key string
	var archive []byte
	for k, v := range store.objects {
		key, archive = k, v
	}
	assert.True(t, strings.HasPrefix(key, archivePrefix), "archive key %q missing prefix", key)
	assert.True(t, strings.HasSuffix(key, ".tar.gz"))
	assert.Equal(t, key, info.Filename)
	assert.Equal(t, int64(len(archive)), info.SizeBytes)

	files := extractArchive(t, archive)
	require.Contains(t, files, "strategies.db")
	require.Contains(t, files, "mcn.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	assert.Equal(t, "1.0.0", metadata.Version)
	assert.False(t, metadata.Timestamp.IsZero())
	require.Len(t, metadata.Databases, 2)

	// The manifest checksums must match the archived bytes exactly.
	for _, db := range metadata.Databases {
		contents, ok := files[db.Filename]
		require.True(t, ok, "manifest names %s but archive lacks it", db.Filename)
		assert.Equal(t, int64(len(contents)), db.SizeBytes)
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(contents)), db.Checksum)
	}
}

func TestListBackupsSortsNewestFirstAndSkipsForeignKeys(t *testing.T) {
	store := &fakeObjectStore{}
	now := time.Now().UTC().Truncate(time.Second)
	store.seed(archiveKey(now.Add(-3 * time.Hour)))
	store.seed(archiveKey(now.Add(-1 * time.Hour)))
	store.seed(archiveKey(now.Add(-2 * time.Hour)))
	store.seed(archivePrefix + "not-a-timestamp.tar.gz")

	service := NewCloudBackupService(store, nil, t.TempDir(), zerolog.Nop())
	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)

	require.Len(t, backups, 3)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))
	assert.True(t, backups[1].Timestamp.After(backups[2].Timestamp))
	assert.GreaterOrEqual(t, backups[0].AgeHours, int64(0))
}

func TestRotateOldBackupsKeepsMinimumAndRecent(t *testing.T) {
	store := &fakeObjectStore{}
	now := time.Now().UTC()
	recent := []string{
		archiveKey(now.Add(-1 * time.Hour)),
		archiveKey(now.Add(-2 * time.Hour)),
		archiveKey(now.Add(-3 * time.Hour)),
	}
	expired := []string{
		archiveKey(now.AddDate(0, 0, -10)),
		archiveKey(now.AddDate(0, 0, -20)),
	}
	for _, key := range append(append([]string{}, recent...), expired...) {
		store.seed(key)
	}

	service := NewCloudBackupService(store, nil, t.TempDir(), zerolog.Nop())
	require.NoError(t, service.RotateOldBackups(context.Background(), 7))

	assert.ElementsMatch(t, expired, store.deleted)
	for _, key := range recent {
		assert.Contains(t, store.objects, key)
	}
}

func TestRotateOldBackupsNeverDropsBelowMinimum(t *testing.T) {
	store := &fakeObjectStore{}
	now := time.Now().UTC()
	// All three are long past retention, but the floor protects them.
	for i := 1; i <= minBackupsToKeep; i++ {
		store.seed(archiveKey(now.AddDate(0, 0, -30*i)))
	}

	service := NewCloudBackupService(store, nil, t.TempDir(), zerolog.Nop())
	require.NoError(t, service.RotateOldBackups(context.Background(), 7))

	assert.Empty(t, store.deleted)
	assert.Len(t, store.objects, minBackupsToKeep)
}

func TestRotateOldBackupsZeroRetentionKeepsEverything(t *testing.T) {
	store := &fakeObjectStore{}
	now := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		store.seed(archiveKey(now.AddDate(0, 0, -30*i)))
	}

	service := NewCloudBackupService(store, nil, t.TempDir(), zerolog.Nop())
	require.NoError(t, service.RotateOldBackups(context.Background(), 0))

	assert.Empty(t, store.deleted)
	assert.Len(t, store.objects, 5)
}

func TestCloudBackupJobUploadsAndRotates(t *testing.T) {
	backupService, _ := newBackupFixture(t)
	store := &fakeObjectStore{}
	store.seed(archiveKey(time.Now().UTC().AddDate(0, 0, -40)))
	store.seed(archiveKey(time.Now().UTC().AddDate(0, 0, -41)))
	store.seed(archiveKey(time.Now().UTC().AddDate(0, 0, -42)))

	bus := events.NewBus(zerolog.Nop())
	var completed []*events.Event
	bus.Subscribe(events.BackupCompleted, func(e *events.Event) {
		completed = append(completed, e)
	})

	service := NewCloudBackupService(store, backupService, t.TempDir(), zerolog.Nop())
	job := NewCloudBackupJob(service, 30, events.NewManager(bus, zerolog.Nop()))

	assert.Equal(t, "cloud_backup", job.Name())
	require.NoError(t, job.Run())

	// Fresh archive uploaded; the oldest pre-seeded one rotated out
	// (4 total, keep newest 3, one beyond retention).
	assert.Len(t, store.objects, 3)
	assert.Len(t, store.deleted, 1)

	require.Len(t, completed, 1)
	assert.Contains(t, completed[0].Data["filename"], archivePrefix)
}
