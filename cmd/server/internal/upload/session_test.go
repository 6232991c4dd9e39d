package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/catchup/cmd/server/internal/pipeline"
)

func TestInitValidation(t *testing.T) {
	st := NewStore()

	_, err := st.Init(1024, 0, "mp3", 44100, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_chunks")

	_, err = st.Init(0, 4, "mp3", 44100, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_size")

	id, err := st.Init(1024, 4, "mp3", 44100, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestReassemblyOutOfOrder(t *testing.T) {
	st := NewStore()
	id, err := st.Init(8, 4, "mp3", 44100, "user-1")
	require.NoError(t, err)

	// arrival order 2, 0, 3, 1
	require.NoError(t, st.PutChunk(id, 2, []byte("cc"), "user-1"))
	require.NoError(t, st.PutChunk(id, 0, []byte("aa"), "user-1"))
	require.NoError(t, st.PutChunk(id, 3, []byte("dd"), "user-1"))
	require.NoError(t, st.PutChunk(id, 1, []byte("bb"), "user-1"))

	payload, err := st.Finalize(id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("aabbccdd"), payload)
}

func TestDuplicateChunkOverwrites(t *testing.T) {
	st := NewStore()
	id, _ := st.Init(4, 2, "mp3", 44100, "user-1")

	require.NoError(t, st.PutChunk(id, 0, []byte("xx"), "user-1"))
	require.NoError(t, st.PutChunk(id, 0, []byte("yy"), "user-1"))

	received, total, err := st.Progress(id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, received)
	assert.Equal(t, 2, total)

	require.NoError(t, st.PutChunk(id, 1, []byte("zz"), "user-1"))
	payload, err := st.Finalize(id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("yyzz"), payload)
}

func TestPutChunkRejections(t *testing.T) {
	st := NewStore()
	id, _ := st.Init(4, 2, "mp3", 44100, "user-1")

	err := st.PutChunk("no-such-session", 0, []byte("aa"), "user-1")
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.UPLOAD_SESSION_ERROR, perr.Code)

	err = st.PutChunk(id, 0, []byte("aa"), "intruder")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.UPLOAD_FORBIDDEN, perr.Code)

	err = st.PutChunk(id, 2, []byte("aa"), "user-1")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.VALIDATION_FAILED, perr.Code)

	err = st.PutChunk(id, -1, []byte("aa"), "user-1")
	require.Error(t, err)

	err = st.PutChunk(id, 0, nil, "user-1")
	require.Error(t, err)
}

func TestFinalizeIncomplete(t *testing.T) {
	st := NewStore()
	id, _ := st.Init(6, 3, "mp3", 44100, "user-1")

	require.NoError(t, st.PutChunk(id, 0, []byte("aa"), "user-1"))

	_, err := st.Finalize(id, "user-1")
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.UPLOAD_INCOMPLETE, perr.Code)
	assert.Contains(t, err.Error(), "missing 2 of 3 chunks")

	// incomplete finalize must not consume the session
	require.NoError(t, st.PutChunk(id, 1, []byte("bb"), "user-1"))
	require.NoError(t, st.PutChunk(id, 2, []byte("cc"), "user-1"))
	payload, err := st.Finalize(id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("aabbcc"), payload)
}

func TestFinalizeIsSingleUse(t *testing.T) {
	st := NewStore()
	id, _ := st.Init(2, 1, "mp3", 44100, "user-1")
	require.NoError(t, st.PutChunk(id, 0, []byte("aa"), "user-1"))

	_, err := st.Finalize(id, "user-1")
	require.NoError(t, err)

	_, err = st.Finalize(id, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestFinalizeOwnerMismatch(t *testing.T) {
	st := NewStore()
	id, _ := st.Init(2, 1, "mp3", 44100, "user-1")
	require.NoError(t, st.PutChunk(id, 0, []byte("aa"), "user-1"))

	_, err := st.Finalize(id, "intruder")
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.UPLOAD_FORBIDDEN, perr.Code)

	// still available to the real owner
	_, err = st.Finalize(id, "user-1")
	require.NoError(t, err)
}

func TestTakeFinalized(t *testing.T) {
	st := NewStore()
	id, _ := st.Init(4, 2, "mp3", 44100, "user-1")
	require.NoError(t, st.PutChunk(id, 0, []byte("aa"), "user-1"))
	require.NoError(t, st.PutChunk(id, 1, []byte("bb"), "user-1"))

	_, err := st.Finalize(id, "user-1")
	require.NoError(t, err)

	_, err = st.TakeFinalized(id, "intruder")
	require.Error(t, err)

	payload, err := st.TakeFinalized(id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("aabb"), payload.Data)
	assert.Equal(t, "mp3", payload.Format)
	assert.Equal(t, 44100, payload.SampleRate)

	// single use
	_, err = st.TakeFinalized(id, "user-1")
	require.Error(t, err)
}

func TestReapOlderThan(t *testing.T) {
	st := NewStore()
	oldID, _ := st.Init(2, 1, "mp3", 44100, "user-1")
	st.sessions[oldID].CreatedAt = time.Now().Add(-time.Hour)
	freshID, _ := st.Init(2, 1, "mp3", 44100, "user-1")

	reaped := st.ReapOlderThan(time.Now().Add(-10 * time.Minute))
	assert.Equal(t, 1, reaped)

	_, _, err := st.Progress(oldID, "user-1")
	require.Error(t, err)
	_, _, err = st.Progress(freshID, "user-1")
	require.NoError(t, err)
}
