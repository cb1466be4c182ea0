package scanning

// transcribePrompt is the shared instruction for the image-to-text stage
const transcribePrompt = `You are reading a photo or scan of a receipt or invoice. Transcribe ALL visible text exactly as it appears, top to bottom, one printed line per output line.

Important:
- Keep numbers, prices, dates and currency symbols exactly as printed
- Keep item names and quantities on the same line as their prices
- Do not summarize, translate or correct anything
- Do not add commentary before or after the transcription
- If there is no readable text, return an empty response`

// structurePrompt is the shared instruction for the text-to-record stage
const structurePrompt = `You are given the transcribed text of a receipt. Convert it into a JSON object with exactly these fields:

{
  "merchant": "Store or business name",
  "date": "YYYY-MM-DD",
  "total": 0.00,
  "items": [
    {"item": "Item name", "quantity": 1, "price": 0.00}
  ]
}

Important:
- "merchant" is the store/business name, usually at the top of the receipt
- "date" is the transaction date converted to YYYY-MM-DD
- "total" is the final amount paid as a number (e.g. 42.75 for $42.75)
- "items" lists every purchased line item; "price" is the line price as a number
- Use quantity 1 when no quantity is printed
- Return ONLY the JSON object, no markdown and no other text

Receipt text:
`

// receiptSchema is the JSON schema sent to backends that accept one verbatim
const receiptSchema = `{
  "type": "object",
  "properties": {
    "merchant": {"type": "string"},
    "date": {"type": "string"},
    "total": {"type": "number"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "item": {"type": "string"},
          "quantity": {"type": "number"},
          "price": {"type": "number"}
        },
        "required": ["item", "quantity", "price"]
      }
    }
  },
  "required": ["merchant", "date", "total", "items"]
}`
