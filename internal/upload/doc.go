// Package upload hands a video to the backend that creates the attempt.
package upload
