package service

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTempFileSharedAcrossPageWorkers(t *testing.T) {
	doc := &pdfDocument{data: []byte("%PDF-1.4\n%conteúdo de teste\n%%EOF\n")}

	paths := make([]string, 16)
	var wg sync.WaitGroup
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := doc.tempFile()
			assert.NoError(t, err)
			paths[i] = path
		}(i)
	}
	wg.Wait()

	// Every worker sees the same copy on disk.
	for _, path := range paths {
		assert.Equal(t, paths[0], path)
	}
	onDisk, err := os.ReadFile(paths[0])
	assert.NoError(t, err)
	assert.Equal(t, doc.data, onDisk)

	assert.NoError(t, doc.Close())
	_, err = os.Stat(paths[0])
	assert.True(t, os.IsNotExist(err))
}
