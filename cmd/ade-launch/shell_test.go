package main

import (
	"bytes"
	"net"
	"strings"

	"github.com/0xADE/ade-launchd/client/launch"
	"github.com/0xADE/ade-launchd/parser"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeDaemon answers filter, list-next and run over conn
func fakeDaemon(conn net.Conn) {
	defer GinkgoRecover()
	defer conn.Close()

	p, err := parser.NewParser(conn)
	if err != nil {
		return
	}
	names := []string{"Firefox", "Files"}
	for {
		cmd, err := p.ParseCommand()
		if err != nil {
			return
		}
		var resp *parser.Response
		switch cmd.Name {
		case "filter":
			resp = parser.NewResponse("filter").Set("status", 0).Set("matches", len(names))
		case "list-next":
			resp = parser.NewResponse("list").Set(parser.BodyLenAttr, len(names)).Set("offset", 0).Set("total", len(names))
			for i, n := range names {
				resp.Body = append(resp.Body, strings.Join([]string{string(rune('0' + i)), n}, " "))
			}
		case "run":
			if cmd.Ints()[0] >= int64(len(names)) {
				resp = parser.ErrorResponse("run", "index not found", "no such row")
			} else {
				resp = parser.NewResponse("run").Set("idx", cmd.Ints()[0]).Set("status", 0).Set("pid", 99).Set("persisted", true)
			}
		default:
			resp = parser.ErrorResponse(cmd.Name, "unknown command", "Command not recognized")
		}
		if _, err := resp.WriteTo(conn); err != nil {
			return
		}
	}
}

var _ = Describe("shell", func() {
	var c *launch.Client

	BeforeEach(func() {
		clientConn, serverConn := net.Pipe()
		go fakeDaemon(serverConn)

		var err error
		c, err = launch.NewClientConn(clientConn)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		c.Close()
	})

	It("should list matches and launch by position", func() {
		var out bytes.Buffer
		err := shell(c, strings.NewReader("fi\n!1\n!7\n!x\nexit\nnot reached\n"), &out)
		Expect(err).NotTo(HaveOccurred())

		Expect(out.String()).To(ContainSubstring("   0  Firefox\n   1  Files\n"))
		Expect(out.String()).To(ContainSubstring("started pid 99"))
		Expect(out.String()).To(ContainSubstring("error: run: index not found"))
		Expect(out.String()).To(ContainSubstring(`invalid position "!x"`))
	})
})

var _ = Describe("parsePos", func() {
	It("should accept non-negative integers", func() {
		Expect(parsePos("12")).To(Equal(12))
	})

	It("should reject anything else", func() {
		_, err := parsePos("-1")
		Expect(err).To(HaveOccurred())
		_, err = parsePos("abc")
		Expect(err).To(HaveOccurred())
	})
})
