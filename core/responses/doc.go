// Package responses holds the text processing applied to a streamed model
// response before it is spoken: splitting a growing buffer into complete
// sentences and handling inline task completion markers.
//
// All functions are stateless. The caller owns the buffer and calls them
// again every time it grows.
package responses
