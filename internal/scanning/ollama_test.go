package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		ollama  *Ollama
		lastReq ollamaChatRequest
	)

	// captureRequest records the decoded chat request for later assertions
	captureRequest := func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		Expect(json.NewDecoder(r.Body).Decode(&lastReq)).To(Succeed())
	}

	reply := func(content string) http.HandlerFunc {
		return ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.VerifyContentType("application/json"),
			captureRequest,
			ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: content},
				Done:    true,
			}),
		)
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		lastReq = ollamaChatRequest{}
		var err error
		ollama, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("ExtractText", func() {
		var (
			text string
			err  error
		)

		JustBeforeEach(func() {
			text, err = ollama.ExtractText(context.Background(), encodeTestImage(8, 8, "png"), "image/png")
		})

		When("the model transcribes the image", func() {
			BeforeEach(func() {
				server.AppendHandlers(reply("  CVS PHARMACY\nTOTAL 25.99\n"))
			})

			It("returns the trimmed text", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal("CVS PHARMACY\nTOTAL 25.99"))
			})

			It("attaches the image to the user message", func() {
				Expect(lastReq.Messages).To(HaveLen(2))
				Expect(lastReq.Messages[1].Images).To(HaveLen(1))
				Expect(lastReq.Stream).To(BeFalse())
				Expect(lastReq.Model).To(Equal("llava"))
			})
		})

		When("the model returns no text", func() {
			BeforeEach(func() {
				server.AppendHandlers(reply("   "))
			})

			It("returns an ExtractionError wrapping ErrNoText", func() {
				var extractionErr *ExtractionError
				Expect(errors.As(err, &extractionErr)).To(BeTrue())
				Expect(err).To(MatchError(ErrNoText))
			})
		})

		When("the API responds with an error status", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
			})

			It("returns an ExtractionError carrying the upstream body", func() {
				var extractionErr *ExtractionError
				Expect(errors.As(err, &extractionErr)).To(BeTrue())
				Expect(err).To(MatchError(ContainSubstring("model not loaded")))
			})
		})
	})

	Describe("Structure", func() {
		var (
			data *ReceiptData
			err  error
		)

		JustBeforeEach(func() {
			data, err = ollama.Structure(context.Background(), "CVS PHARMACY\nTOTAL 25.99")
		})

		When("the model returns a valid record", func() {
			BeforeEach(func() {
				server.AppendHandlers(reply(`{"merchant": "CVS Pharmacy", "date": "2024-01-15", "total": 25.99, "items": []}`))
			})

			It("returns the parsed record", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(data.Merchant).To(Equal("CVS Pharmacy"))
				Expect(data.Total).To(Equal(25.99))
			})

			It("constrains the response with the receipt schema", func() {
				Expect(string(lastReq.Format)).To(MatchJSON(receiptSchema))
			})

			It("includes the transcribed text in the prompt", func() {
				Expect(lastReq.Messages[0].Content).To(HaveSuffix("CVS PHARMACY\nTOTAL 25.99"))
			})
		})

		When("the model omits the total", func() {
			BeforeEach(func() {
				server.AppendHandlers(reply(`{"merchant": "CVS Pharmacy", "date": "2024-01-15", "items": []}`))
			})

			It("returns a StructuringError", func() {
				var structuringErr *StructuringError
				Expect(errors.As(err, &structuringErr)).To(BeTrue())
				Expect(data).To(BeNil())
			})
		})

		When("the API call fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "upstream"))
			})

			It("returns a StructuringError", func() {
				var structuringErr *StructuringError
				Expect(errors.As(err, &structuringErr)).To(BeTrue())
			})
		})
	})
})
