// Package facematch resolves face embeddings to enrolled students.
package facematch

import "github.com/kozaktomas/face-attendance/internal/database"

// Entry is one enrolled (student, embedding) pair.
type Entry struct {
	Student   database.Student
	Embedding []float32
}

// Result is the accepted nearest neighbour for a probe.
type Result struct {
	Student  database.Student
	Distance float64 // Euclidean, logged only
	Index    int     // position in the searched entries
}
