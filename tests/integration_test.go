package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-analyzer/internal/api"
	"github.com/zombor/receipt-analyzer/internal/receipt"
	"github.com/zombor/receipt-analyzer/internal/scanning"
)

func TestIntegration(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

// MockEngine stands in for an OCR service
type MockEngine struct {
	text string
}

func (m *MockEngine) Recognize(_ context.Context, _ []byte, _ string) (string, error) {
	return m.text, nil
}

func (m *MockEngine) Close() error {
	return nil
}

func upload(url, filename string, data []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())

	req, err := http.NewRequest("POST", url+"/api/receipts", body)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func describeFlow(store string, open func(path string) (receipt.DB, error)) {
	Describe("with the "+store+" store", func() {
		var (
			tempDir  string
			db       receipt.DB
			files    receipt.Storage
			engine   *MockEngine
			service  *receipt.Service
			server   *api.Server
			ghServer *ghttp.Server
			err      error
		)

		do := func(req *http.Request) *http.Response {
			ghServer.AppendHandlers(server.ServeHTTP)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		BeforeEach(func() {
			tempDir, err = os.MkdirTemp("", "receipt-analyzer-test-*")
			Expect(err).NotTo(HaveOccurred())

			db, err = open(filepath.Join(tempDir, "receipts.db"))
			Expect(err).NotTo(HaveOccurred())

			files, err = receipt.NewLocalStorage(filepath.Join(tempDir, "receipts"))
			Expect(err).NotTo(HaveOccurred())

			engine = &MockEngine{text: "ACME HARDWARE\nVendor: Acme Hardware\nDate 2024-03-20\nTOTAL\nAmount: 42.50"}
			service = receipt.NewService(db, scanning.NewRouter(engine), files)
			server = api.NewServer(service, api.BasicAuth{}) // No auth for testing convenience

			ghServer = ghttp.NewServer()
		})

		AfterEach(func() {
			if ghServer != nil {
				ghServer.Close()
			}
			if service != nil {
				service.Close()
			}
			if tempDir != "" {
				os.RemoveAll(tempDir)
			}
		})

		It("should upload, deduplicate, correct and summarize receipts", func() {
			// --- Step 1: a PDF goes through the OCR engine ---
			resp := do(upload(ghServer.URL(), "receipt.pdf", []byte("%PDF-1.4 ... fake pdf content ...")))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created struct {
				Status  string          `json:"status"`
				Receipt receipt.Receipt `json:"receipt"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
			resp.Body.Close()

			Expect(created.Status).To(Equal("uploaded"))
			Expect(created.Receipt.Vendor).To(Equal("Acme Hardware"))
			Expect(created.Receipt.Date).To(Equal("2024-03-20"))
			Expect(created.Receipt.Amount).To(Equal(42.5))

			saved, err := db.GetReceipt(created.Receipt.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = files.Get(context.Background(), saved.StoredPath)
			Expect(err).NotTo(HaveOccurred())

			// --- Step 2: the same name is rejected before any work ---
			resp = do(upload(ghServer.URL(), "receipt.pdf", []byte("different bytes")))
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			resp.Body.Close()

			// --- Step 3: the same content under a new name is rejected and its file removed ---
			resp = do(upload(ghServer.URL(), "copy.pdf", []byte("%PDF-1.4 copy")))
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			resp.Body.Close()

			entries, err := os.ReadDir(filepath.Join(tempDir, "receipts"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))

			// --- Step 4: an unreadable text upload is stored for review ---
			resp = do(upload(ghServer.URL(), "note.txt", []byte("thanks for shopping")))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var flagged struct {
				Receipt map[string]any `json:"receipt"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&flagged)).To(Succeed())
			resp.Body.Close()
			Expect(flagged.Receipt).To(HaveKeyWithValue("needs_review", true))

			// --- Step 5: the user corrects it ---
			id := int64(flagged.Receipt["id"].(float64))
			req, err := http.NewRequest("PATCH", ghServer.URL()+"/api/receipts/"+strconv.FormatInt(id, 10),
				strings.NewReader(`{"vendor":"Deli","date":"2024-04-02","amount":7.5,"category":"food"}`))
			Expect(err).NotTo(HaveOccurred())
			resp = do(req)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()

			// --- Step 6: analytics reflect both receipts ---
			req, err = http.NewRequest("GET", ghServer.URL()+"/api/stats", nil)
			Expect(err).NotTo(HaveOccurred())
			resp = do(req)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var stats map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&stats)).To(Succeed())
			resp.Body.Close()

			Expect(stats).To(HaveKeyWithValue("total", 50.0))
			Expect(stats).To(HaveKeyWithValue("mean", 25.0))
			Expect(stats).To(HaveKeyWithValue("mode", BeNil()))
			Expect(stats["vendor_frequency"]).To(Equal(map[string]any{"Acme Hardware": 1.0, "Deli": 1.0}))
		})
	})
}

var _ = Describe("Integration", func() {
	describeFlow("bolt", func(path string) (receipt.DB, error) {
		return receipt.NewBoltDB(path)
	})
	describeFlow("sqlite", func(path string) (receipt.DB, error) {
		return receipt.NewSQLiteDB(path)
	})
})
