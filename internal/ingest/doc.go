// Package ingest accepts camera frames over WebSocket.
//
// Each connected client may push frames; every frame is handed to a FrameSink
// (the pipeline) and relayed to all other connected clients through the Hub,
// so browsers can watch the live feed on the same socket the camera uses.
package ingest
