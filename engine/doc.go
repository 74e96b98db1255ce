// Package engine keeps opted-in scene lights in step with the light source
// tracker.
//
// The Engine reduces the tracker's monitored sources to one "global
// illumination active" signal, remembers the last value it applied, and only
// rewrites light visibility when that value changes or a scene is loaded.
// It also keeps a marker attached to every opted-in light and to no other.
//
// Visibility writes are handed to a Dispatcher and are not awaited: an
// operation returns once its writes are queued. Each write succeeds or fails
// on its own; failures are logged, counted and passed to the Notifier.
//
// All Engine entry points are expected to be called from one goroutine.
package engine
