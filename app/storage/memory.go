package storage

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"medflow/app/workflow/interfaces"
	"medflow/pkg/contextx"
)

// MemoryService is an in-process object store with a DICOM tag index on
// the side. Deployments with a real object store plug their own
// StorageService in instead.
type MemoryService struct {
	mu      sync.RWMutex
	objects map[string]map[string][]byte
	tags    map[string]map[string][]string
	issued  map[string]bool
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		objects: map[string]map[string][]byte{},
		tags:    map[string]map[string][]string{},
		issued:  map[string]bool{},
	}
}

func (s *MemoryService) Put(bucket, key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[bucket] == nil {
		s.objects[bucket] = map[string][]byte{}
	}
	s.objects[bucket][key] = content
}

// SetDicomValue records the values a tag takes across the files of a
// payload. keyId is the concatenated group and element, e.g. 00100040.
func (s *MemoryService) SetDicomValue(payloadId, keyId string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags[payloadId] == nil {
		s.tags[payloadId] = map[string][]string{}
	}
	s.tags[payloadId][keyId] = values
}

func (s *MemoryService) ListObjects(ctx *contextx.Context, bucket, prefix string, recursive bool) ([]interfaces.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var listed []interfaces.ObjectInfo
	for key, content := range s.objects[bucket] {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !recursive && strings.Contains(strings.TrimPrefix(key, prefix), "/") {
			continue
		}
		listed = append(listed, interfaces.ObjectInfo{Key: key, Size: int64(len(content))})
	}
	return listed, nil
}

// VerifyObjectsExist treats each key as either an object or a folder
// prefix: a folder exists when anything is stored under it.
func (s *MemoryService) VerifyObjectsExist(ctx *contextx.Context, bucket string, keys []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := map[string]bool{}
	for _, key := range keys {
		existing[key] = false
		folder := strings.TrimSuffix(key, "/") + "/"
		for stored := range s.objects[bucket] {
			if stored == key || strings.HasPrefix(stored, folder) {
				existing[key] = true
				break
			}
		}
	}
	return existing, nil
}

func (s *MemoryService) CreateTemporaryCredentials(ctx *contextx.Context, bucket, path string, ttlSeconds int) (*interfaces.Credentials, error) {
	credentials := &interfaces.Credentials{
		AccessKeyID:     uuid.NewString(),
		SecretAccessKey: uuid.NewString(),
	}
	if ttlSeconds > 0 {
		credentials.SessionToken = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[credentials.AccessKeyID] = true
	return credentials, nil
}

func (s *MemoryService) RemoveCredentials(ctx *contextx.Context, credentials interfaces.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.issued, credentials.AccessKeyID)
	return nil
}

func (s *MemoryService) GetAnyValue(ctx *contextx.Context, keyId, payloadId, bucketId string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := s.tags[payloadId][keyId]
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

// GetAllValue returns the tag value only when every file of the payload
// agrees on it.
func (s *MemoryService) GetAllValue(ctx *contextx.Context, keyId, payloadId, bucketId string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := s.tags[payloadId][keyId]
	if len(values) == 0 {
		return "", nil
	}
	for _, value := range values[1:] {
		if value != values[0] {
			return "", nil
		}
	}
	return values[0], nil
}
