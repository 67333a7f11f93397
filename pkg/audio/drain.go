package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when the data of a streaming channel is
// not needed (e.g. the audio of an utterance that was interrupted).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
