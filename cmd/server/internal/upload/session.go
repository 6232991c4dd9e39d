// Package upload implements the chunked upload reassembler: callers
// announce a payload, stream chunks in any order, then finalize to get
// the reassembled bytes back exactly once.
package upload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
	"github.com/streamlens/catchup/pkg/metrics"
)

// Session is one in-progress chunked upload.
type Session struct {
	ID          string
	OwnerID     string
	TotalSize   int64
	TotalChunks int
	Format      string
	SampleRate  int
	CreatedAt   time.Time

	chunks map[int][]byte
}

// Received reports how many distinct chunk indexes have arrived.
func (s *Session) Received() int {
	return len(s.chunks)
}

// FinalizedPayload is a reassembled upload retained until a catch-up
// submission consumes it.
type FinalizedPayload struct {
	OwnerID     string
	Data        []byte
	Format      string
	SampleRate  int
	FinalizedAt time.Time
}

// Store holds upload sessions in memory. Sessions are non-durable and
// disappear on restart or after reaping.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	finalized map[string]*FinalizedPayload
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		finalized: make(map[string]*FinalizedPayload),
	}
}

// Init opens a new upload session and returns its id.
func (st *Store) Init(totalSize int64, totalChunks int, format string, sampleRate int, ownerID string) (string, error) {
	if totalChunks <= 0 {
		return "", pipeline.NewValidationError("total_chunks must be greater than 0")
	}
	if totalSize <= 0 {
		return "", pipeline.NewValidationError("total_size must be greater than 0")
	}

	session := &Session{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
		Format:      format,
		SampleRate:  sampleRate,
		CreatedAt:   time.Now(),
		chunks:      make(map[int][]byte),
	}

	st.mu.Lock()
	st.sessions[session.ID] = session
	st.mu.Unlock()

	return session.ID, nil
}

// PutChunk stores one chunk. A repeated index overwrites the previous
// payload without double-counting toward completeness.
func (st *Store) PutChunk(uploadID string, index int, data []byte, ownerID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.sessions[uploadID]
	if !ok {
		return pipeline.NewUploadSessionError("session not found: " + uploadID)
	}
	if session.OwnerID != ownerID {
		return pipeline.NewUploadForbiddenError(uploadID)
	}
	if index < 0 || index >= session.TotalChunks {
		return pipeline.NewValidationError(fmt.Sprintf("chunk index %d out of range [0,%d)", index, session.TotalChunks))
	}
	if len(data) == 0 {
		return pipeline.NewValidationError("chunk payload cannot be empty")
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	session.chunks[index] = buf

	metrics.UploadChunksTotal.Inc()
	return nil
}

// Progress returns received and total chunk counts for a session.
func (st *Store) Progress(uploadID, ownerID string) (received, total int, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.sessions[uploadID]
	if !ok {
		return 0, 0, pipeline.NewUploadSessionError("session not found: " + uploadID)
	}
	if session.OwnerID != ownerID {
		return 0, 0, pipeline.NewUploadForbiddenError(uploadID)
	}
	return session.Received(), session.TotalChunks, nil
}

// Finalize validates completeness, concatenates chunks in ascending
// index order, and consumes the session. A second finalize of the same
// id fails with session not found. The reassembled payload is retained
// until a catch-up submission takes it or the reaper expires it.
func (st *Store) Finalize(uploadID, ownerID string) ([]byte, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.sessions[uploadID]
	if !ok {
		return nil, pipeline.NewUploadSessionError("session not found: " + uploadID)
	}
	if session.OwnerID != ownerID {
		return nil, pipeline.NewUploadForbiddenError(uploadID)
	}

	if missing := session.TotalChunks - len(session.chunks); missing > 0 {
		return nil, pipeline.NewUploadIncompleteError(missing, session.TotalChunks)
	}

	size := 0
	for _, chunk := range session.chunks {
		size += len(chunk)
	}
	payload := make([]byte, 0, size)
	for i := 0; i < session.TotalChunks; i++ {
		payload = append(payload, session.chunks[i]...)
	}

	delete(st.sessions, uploadID)
	st.finalized[uploadID] = &FinalizedPayload{
		OwnerID:     ownerID,
		Data:        payload,
		Format:      session.Format,
		SampleRate:  session.SampleRate,
		FinalizedAt: time.Now(),
	}
	return payload, nil
}

// TakeFinalized hands over a finalized payload exactly once.
func (st *Store) TakeFinalized(uploadID, ownerID string) (*FinalizedPayload, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	payload, ok := st.finalized[uploadID]
	if !ok {
		return nil, pipeline.NewUploadSessionError("no finalized payload for " + uploadID)
	}
	if payload.OwnerID != ownerID {
		return nil, pipeline.NewUploadForbiddenError(uploadID)
	}

	delete(st.finalized, uploadID)
	return payload, nil
}

// ReapOlderThan removes sessions created before the cutoff and returns
// how many were dropped. Abandoned uploads would otherwise pin their
// chunk payloads in memory forever.
func (st *Store) ReapOlderThan(cutoff time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	reaped := 0
	for id, session := range st.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(st.sessions, id)
			reaped++
		}
	}
	for id, payload := range st.finalized {
		if payload.FinalizedAt.Before(cutoff) {
			delete(st.finalized, id)
			reaped++
		}
	}
	return reaped
}
