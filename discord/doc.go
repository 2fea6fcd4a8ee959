// Package discord implements hunt.Platform against the Discord REST API and
// gateway. All traffic, webhook posts included, can be routed through an HTTP
// or SOCKS5 proxy.
package discord
