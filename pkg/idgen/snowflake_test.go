package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(7)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateConcurrent(t *testing.T) {
	s, err := NewSnowflake(3)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[int64]struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				id := s.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 8000)
}

func TestNewSnowflakeRejectsBadWorker(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)
	_, err = NewSnowflake(maxWorkerID + 1)
	assert.Error(t, err)
}

func TestGenerateTransactionNoPrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateTransactionNo("MILESTONE_RELEASE"), "REL"))
	assert.True(t, strings.HasPrefix(GenerateTransactionNo("REFUND"), "RFD"))
	assert.True(t, strings.HasPrefix(GenerateTransactionNo("unknown"), "TXN"))
	assert.NotEqual(t, GenerateTransactionNo("DEPOSIT"), GenerateTransactionNo("DEPOSIT"))
}

func TestNextIDDefaultsWithoutInit(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int64]struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 2000)
}
