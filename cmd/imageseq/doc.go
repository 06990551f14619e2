// Package main hosts the imageseq CLI entrypoint and command graph.
//
// Each command builds one sequence controller, drives its completion loop
// until the operation event arrives, prints a summary and records the run in
// the catalog. Ctrl-C cancels the running worker and waits for it before the
// process exits.
package main
