// Package fileserve streams stored archives over HTTP with validators and
// single byte-range support.
//
// ContentType maps names to media types. Chunks is a restartable iterator
// over a byte range of a stored object that always releases the handle,
// including when the consumer stops early. Responder ties both together
// into conditional (ETag, Last-Modified) and partial (206, 416) responses.
package fileserve
