package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0 // Every record priced
	ExitRejected = 1 // One or more records failed validation
	ExitError    = 2 // Configuration, artifact or runtime error
)

// RejectedError reports that prediction ran but some records were rejected
type RejectedError struct {
	Rejected int
	Total    int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%d of %d records rejected", e.Rejected, e.Total)
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			os.Exit(ExitRejected)
		}
		os.Exit(ExitError)
	}
}
