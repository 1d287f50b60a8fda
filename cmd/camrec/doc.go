// Command camrec is the operator CLI for the camrec daemon: it runs the daemon
// in the foreground, reports health, lists recordings and manages the config
// file. Recording queries go through the daemon HTTP API when it answers and
// read the metadata database directly otherwise.
package main
