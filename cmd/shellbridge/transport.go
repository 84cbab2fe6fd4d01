package main

import (
	"github.com/spf13/cobra"

	"github.com/shellbridge/shellbridge/internal/transport"
)

// resolveTransportFromFlags picks a Transport based on the --socket/--http/--ws
// persistent flags, preferring the most specific one given. It never
// returns an error: an unreachable endpoint surfaces later, at Connect.
func resolveTransportFromFlags(cmd *cobra.Command) transport.Transport {
	if wsURL, _ := cmd.Flags().GetString("ws"); wsURL != "" {
		return transport.NewWebSocketTransport(wsURL)
	}
	if httpURL, _ := cmd.Flags().GetString("http"); httpURL != "" {
		return transport.NewHTTPTransport(httpURL)
	}
	socketPath, _ := cmd.Flags().GetString("socket")
	if socketPath == "" {
		socketPath = transport.DefaultSocketPath()
	}
	return transport.NewUnixTransport(socketPath)
}

// resolveStreamingTransportFromFlags is like resolveTransportFromFlags but
// returns a StreamingTransport, since every transport (Unix socket, HTTP
// long-poll, WebSocket) supports the subscribe/unsubscribe/push model. The
// error return remains for flag-resolution failures a future transport
// might introduce.
func resolveStreamingTransportFromFlags(cmd *cobra.Command) (transport.StreamingTransport, error) {
	if wsURL, _ := cmd.Flags().GetString("ws"); wsURL != "" {
		return transport.NewWebSocketTransport(wsURL), nil
	}
	if httpURL, _ := cmd.Flags().GetString("http"); httpURL != "" {
		return transport.NewHTTPTransport(httpURL), nil
	}
	socketPath, _ := cmd.Flags().GetString("socket")
	if socketPath == "" {
		socketPath = transport.DefaultSocketPath()
	}
	return transport.NewUnixTransport(socketPath), nil
}
