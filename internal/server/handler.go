// Package server accepts TCP connections and serves them from a worker pool.
package server

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/mv82/webpool/internal/logger"
)

const (
	statusOK       = "HTTP/1.1 200 OK"
	statusNotFound = "HTTP/1.1 404 NOT FOUND"

	// requestLineOK is the only request line answered with the success page
	requestLineOK = "GET / HTTP/1.1"

	// missingPageBody is served when a page file cannot be read
	missingPageBody = "404 Not Found (Missing File)"
)

// Handler turns one accepted connection into one response. It reads a single
// request line, matches it verbatim and writes a minimal HTTP/1.1 response
// with only a Content-Length header.
type Handler struct {
	successPage  string
	notFoundPage string
	log          *logger.Logger
}

// NewHandler creates a Handler serving the given page files.
func NewHandler(successPage, notFoundPage string, log *logger.Logger) *Handler {
	return &Handler{
		successPage:  successPage,
		notFoundPage: notFoundPage,
		log:          log,
	}
}

// Handle serves the connection and closes it. A connection that dies before
// sending a full request line is closed without a response; every readable
// request line gets an answer, with anything but an exact match served the
// not-found page.
func (h *Handler) Handle(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		h.log.Debugf("connection from %s closed before a request line arrived: %v", conn.RemoteAddr(), err)
		return
	}

	status, page := statusNotFound, h.notFoundPage
	if strings.TrimRight(line, "\r\n") == requestLineOK {
		status, page = statusOK, h.successPage
	}

	body, err := os.ReadFile(page)
	if err != nil {
		h.log.Warnf("failed to read page %s: %v", page, err)
		body = []byte(missingPageBody)
	}

	if err := writeResponse(conn, status, body); err != nil {
		h.log.Debugf("failed to write response to %s: %v", conn.RemoteAddr(), err)
	}
}

// writeResponse writes a status line, a Content-Length header and the body.
func writeResponse(conn net.Conn, status string, body []byte) error {
	if _, err := fmt.Fprintf(conn, "%s\r\nContent-Length: %d\r\n\r\n", status, len(body)); err != nil {
		return err
	}
	_, err := conn.Write(body)
	return err
}
