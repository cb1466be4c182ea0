package scanning

import (
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// jsonSchema is the subset of JSON schema used by receiptSchema
type jsonSchema struct {
	Type       string                `json:"type"`
	Properties map[string]jsonSchema `json:"properties"`
	Items      *jsonSchema           `json:"items"`
	Required   []string              `json:"required"`
}

var schemaTypes = map[genai.Type]string{
	genai.TypeObject: "object",
	genai.TypeArray:  "array",
	genai.TypeString: "string",
	genai.TypeNumber: "number",
}

// sameSchema compares a genai.Schema with its JSON schema counterpart
func sameSchema(g *genai.Schema, j jsonSchema) {
	Expect(schemaTypes[g.Type]).To(Equal(j.Type))
	Expect(g.Required).To(ConsistOf(j.Required))
	Expect(g.Properties).To(HaveLen(len(j.Properties)))
	for name, prop := range j.Properties {
		Expect(g.Properties).To(HaveKey(name))
		sameSchema(g.Properties[name], prop)
	}
	if j.Items != nil {
		Expect(g.Items).NotTo(BeNil())
		sameSchema(g.Items, *j.Items)
	}
}

var _ = Describe("geminiReceiptSchema", func() {
	It("matches the schema sent to Ollama", func() {
		var expected jsonSchema
		Expect(json.Unmarshal([]byte(receiptSchema), &expected)).To(Succeed())
		sameSchema(geminiReceiptSchema(), expected)
	})

	It("requires every receipt and line item field", func() {
		schema := geminiReceiptSchema()
		Expect(schema.Required).To(ConsistOf("merchant", "date", "total", "items"))
		Expect(schema.Properties["items"].Items.Required).To(ConsistOf("item", "quantity", "price"))
	})
})

var _ = Describe("responseText", func() {
	candidate := func(parts ...genai.Part) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
		}
	}

	DescribeTable("extracting the reply",
		func(resp *genai.GenerateContentResponse, expected string) {
			Expect(responseText(resp)).To(Equal(expected))
		},
		Entry("nil response", nil, ""),
		Entry("no candidates", &genai.GenerateContentResponse{}, ""),
		Entry("candidate without content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""),
		Entry("single text part", candidate(genai.Text("CVS PHARMACY")), "CVS PHARMACY"),
		Entry("joins text parts and trims", candidate(genai.Text("  TOTAL "), genai.Text("5.49\n")), "TOTAL 5.49"),
		Entry("skips non-text parts", candidate(genai.ImageData("png", []byte{1}), genai.Text("ok")), "ok"),
		Entry("whitespace only", candidate(genai.Text(" \n ")), ""),
	)
})
