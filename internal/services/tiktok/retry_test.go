package tiktok

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientStoreError(t *testing.T) {
	assert.False(t, isTransientStoreError(nil))
	assert.False(t, isTransientStoreError(errors.New("constraint violation")))

	assert.True(t, isTransientStoreError(errors.New("database is locked")))
	assert.True(t, isTransientStoreError(errors.New("Deadlock found when trying to get lock")))
	assert.True(t, isTransientStoreError(fmt.Errorf("save failed: %w", errors.New("database table is locked"))))

	assert.True(t, isTransientStoreError(&pq.Error{Code: "40P01"}))
	assert.True(t, isTransientStoreError(&pq.Error{Code: "55P03"}))
	assert.True(t, isTransientStoreError(&pq.Error{Code: "40001"}))
	assert.False(t, isTransientStoreError(&pq.Error{Code: "23505"}))
}
