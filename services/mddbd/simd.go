package main

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// SIMDProcessor provides vectorized operations
type SIMDProcessor struct {
	enabled     bool
	operations  atomic.Uint64
	mu          sync.RWMutex
	parallelism int
}

// NewSIMDProcessor creates a new SIMD processor
func NewSIMDProcessor() *SIMDProcessor {
	return &SIMDProcessor{
		enabled:     true,
		parallelism: 8, // Process 8 items in parallel
	}
}

// VectorizedCompare performs parallel comparison of byte slices
func (sp *SIMDProcessor) VectorizedCompare(data [][]byte, pattern []byte) []int {
	sp.operations.Add(1)
	
	if len(data) == 0 {
		return nil
	}
	
	// Use parallel processing to simulate SIMD
	results := make([]int, 0, len(data))
	resultsChan := make(chan int, len(data))
	
	var wg sync.WaitGroup
	chunkSize := (len(data) + sp.parallelism - 1) / sp.parallelism
	
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				if bytes.Equal(data[j], pattern) {
					resultsChan <- j
				}
			}
		}(i, end)
	}
	
	// Close channel when done
	go func() {
		wg.Wait()
		close(resultsChan)
	}()
	
	// Collect results
	for idx := range resultsChan {
		results = append(results, idx)
	}
	
	return results
}

// VectorizedSearch performs parallel search in byte slices
func (sp *SIMDProcessor) VectorizedSearch(data []byte, pattern []byte) []int {
	sp.operations.Add(1)
	
	if len(data) == 0 || len(pattern) == 0 {
		return nil
	}
	
	// Parallel search in chunks
	results := make([]int, 0)
	resultsChan := make(chan int, 100)
	
	var wg sync.WaitGroup
	chunkSize := (len(data) + sp.parallelism - 1) / sp.parallelism
	
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			
			// Search in this chunk
			chunk := data[start:end]
			offset := 0
			
			for {
				idx := bytes.Index(chunk[offset:], pattern)
				if idx == -1 {
					break
				}
				
				resultsChan <- start + offset + idx
				offset += idx + len(pattern)
				
				if offset >= len(chunk) {
					break
				}
			}
		}(i, end)
	}
	
	// Close channel when done
	go func() {
		wg.Wait()
		close(resultsChan)
	}()
	
	// Collect results
	for idx := range resultsChan {
		results = append(results, idx)
	}
	
	return results
}

// VectorizedSum performs parallel sum of integers
func (sp *SIMDProcessor) VectorizedSum(data []int64) int64 {
	sp.operations.Add(1)
	
	if len(data) == 0 {
		return 0
	}
	
	// Parallel sum
	var sum atomic.Int64
	var wg sync.WaitGroup
	
	chunkSize := (len(data) + sp.parallelism - 1) / sp.parallelism
	
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			
			localSum := int64(0)
			for j := start; j < end; j++ {
				localSum += data[j]
			}
			
			sum.Add(localSum)
		}(i, end)
	}
	
	wg.Wait()
	return sum.Load()
}

// VectorizedFilter filters data in parallel
func (sp *SIMDProcessor) VectorizedFilter(data [][]byte, predicate func([]byte) bool) [][]byte {
	sp.operations.Add(1)
	
	if len(data) == 0 {
		return nil
	}
	
	// Parallel filter
	resultsChan := make(chan []byte, len(data))
	var wg sync.WaitGroup
	
	chunkSize := (len(data) + sp.parallelism - 1) / sp.parallelism
	
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			
			for j := start; j < end; j++ {
				if predicate(data[j]) {
					resultsChan <- data[j]
				}
			}
		}(i, end)
	}
	
	// Close channel when done
	go func() {
		wg.Wait()
		close(resultsChan)
	}()
	
	// Collect results
	results := make([][]byte, 0, len(data))
	for item := range resultsChan {
		results = append(results, item)
	}
	
	return results
}

// VectorizedMap applies function in parallel
func (sp *SIMDProcessor) VectorizedMap(data [][]byte, mapper func([]byte) []byte) [][]byte {
	sp.operations.Add(1)
	
	if len(data) == 0 {
		return nil
	}
	
	// Parallel map
	results := make([][]byte, len(data))
	var wg sync.WaitGroup
	
	chunkSize := (len(data) + sp.parallelism - 1) / sp.parallelism
	
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			
			for j := start; j < end; j++ {
				results[j] = mapper(data[j])
			}
		}(i, end)
	}
	
	wg.Wait()
	return results
}

// ParallelSort performs parallel sorting
func (sp *SIMDProcessor) ParallelSort(data [][]byte, less func(a, b []byte) bool) {
	sp.operations.Add(1)
	
	if len(data) <= 1 {
		return
	}
	
	// Simple parallel merge sort
	sp.parallelMergeSort(data, less, 0, len(data))
}

// parallelMergeSort performs parallel merge sort
func (sp *SIMDProcessor) parallelMergeSort(data [][]byte, less func(a, b []byte) bool, start, end int) {
	if end-start <= 1 {
		return
	}
	
	mid := (start + end) / 2
	
	// Sort halves in parallel
	var wg sync.WaitGroup
	wg.Add(2)
	
	go func() {
		defer wg.Done()
		sp.parallelMergeSort(data, less, start, mid)
	}()
	
	go func() {
		defer wg.Done()
		sp.parallelMergeSort(data, less, mid, end)
	}()
	
	wg.Wait()
	
	// Merge
	sp.merge(data, less, start, mid, end)
}

// merge merges two sorted halves
func (sp *SIMDProcessor) merge(data [][]byte, less func(a, b []byte) bool, start, mid, end int) {
	temp := make([][]byte, end-start)
	i, j, k := start, mid, 0
	
	for i < mid && j < end {
		if less(data[i], data[j]) {
			temp[k] = data[i]
			i++
		} else {
			temp[k] = data[j]
			j++
		}
		k++
	}
	
	for i < mid {
		temp[k] = data[i]
		i++
		k++
	}
	
	for j < end {
		temp[k] = data[j]
		j++
		k++
	}
	
	copy(data[start:end], temp)
}

// Stats returns SIMD statistics
func (sp *SIMDProcessor) Stats() SIMDStats {
	return SIMDStats{
		Enabled:    sp.enabled,
		Operations: sp.operations.Load(),
	}
}

// SIMDStats represents SIMD statistics
type SIMDStats struct {
	Enabled    bool
	Operations uint64
}
