package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/breakerguard/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	Context("server creation", func() {
		It("creates server with valid address", func() {
			srv, err := httpserver.New("localhost:9999", noop, httpserver.Timeouts{})
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
			Expect(srv.Addr()).To(Equal("localhost:9999"))
		})

		It("creates server with IP address", func() {
			srv, err := httpserver.New("127.0.0.1:9999", noop, httpserver.Timeouts{})
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("handles port-only address", func() {
			srv, err := httpserver.New(":9999", noop, httpserver.Timeouts{Read: time.Second})
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("rejects invalid address", func() {
			srv, err := httpserver.New("invalid:host:port", noop, httpserver.Timeouts{})
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		})

		It("rejects address without port", func() {
			_, err := httpserver.New("localhost:", noop, httpserver.Timeouts{})
			Expect(err).To(MatchError(ContainSubstring("port cannot be empty")))
		})

		It("rejects empty address", func() {
			_, err := httpserver.New("", noop, httpserver.Timeouts{})
			Expect(err).To(HaveOccurred())
		})
	})

	Context("ValidateAddress", func() {
		It("accepts host:port and port-only forms", func() {
			Expect(httpserver.ValidateAddress("localhost:8080")).To(Succeed())
			Expect(httpserver.ValidateAddress(":8080")).To(Succeed())
		})

		It("rejects malformed addresses and non-strings", func() {
			Expect(httpserver.ValidateAddress("localhost")).To(MatchError(ContainSubstring("host:port")))
			Expect(httpserver.ValidateAddress("bad host!:8080")).To(MatchError(ContainSubstring("invalid host")))
			Expect(httpserver.ValidateAddress(8080)).To(HaveOccurred())
		})
	})

	Context("server lifecycle", func() {
		var testServer *httpserver.Server

		AfterEach(func() {
			if testServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
				defer cancel()
				_ = testServer.Shutdown(ctx)
			}
		})

		It("starts and handles requests", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})
			var err error
			testServer, err = httpserver.New(":19999", handler, httpserver.Timeouts{})
			Expect(err).NotTo(HaveOccurred())

			go func() {
				testServer.Start()
			}()
			time.Sleep(100 * time.Millisecond)

			resp, err := http.Get("http://localhost:19999")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))
		})

		It("shuts down gracefully", func() {
			var err error
			testServer, err = httpserver.New(":19998", noop, httpserver.Timeouts{})
			Expect(err).NotTo(HaveOccurred())

			go func() {
				testServer.Start()
			}()
			time.Sleep(100 * time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = testServer.Shutdown(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("runs until the context is cancelled", func() {
			var err error
			testServer, err = httpserver.New(":19997", noop, httpserver.Timeouts{})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- testServer.Run(ctx)
			}()
			time.Sleep(100 * time.Millisecond)

			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})
	})
})
