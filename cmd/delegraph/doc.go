// Package main implements the delegraph command line interface: running
// delegation plans against a configured job store and managing the
// relational store's schema.
package main
