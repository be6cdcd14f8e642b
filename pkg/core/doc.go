// Package core provides a small, stable facade over the viruscan internals
// for programs that embed the scanner instead of talking to "viruscan serve".
// It re-exports a narrow API surface through type aliases so callers can
// depend on a stable import path.
//
// Example:
//
//	h := core.NewHost()
//	c := core.New(core.Deps{Provider: provider, Dir: "/var/lib/viruscan"})
//	if err := c.Init(ctx, h); err != nil { /* handle */ }
//	defer c.Deinit(h)
//	out, err := h.Call(ctx, core.Caller{User: "app", Host: "web1"}, "virus_scan", [][]byte{data})
package core
