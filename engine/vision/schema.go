package vision

import (
	"fmt"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

const systemPrompt = `You are reading one page of a multi-page industrial electrical schematic.
Transcribe exactly what is printed. Never invent, translate, or normalize labels.

Rules:
- panel_label: the panel/location code from the title block (e.g. "+A1"), empty if absent.
- sheet_number: the sheet number (foglio) from the title block, 0 if unreadable.
- is_schematic_page: false for covers, indexes, layouts, and tables without wiring.
- wires: one row per drawn wire segment. id is the printed wire number. from/to are
  the endpoint labels exactly as printed, including terminal pins (e.g. "QM102.1",
  "XT12:4"). A bare number at the end of a segment is a page reference: keep it verbatim.
- components: one row per device designation visible on the page (e.g. "QM102").
- Omit nothing you can read; put anything doubtful in warnings instead of guessing.`

func userPrompt(page domain.PagePayload) string {
	p := fmt.Sprintf("Extract the wiring and components from page %d.", page.Index)
	if page.RawText != "" {
		p += "\n\nText layer extracted from the same page, use it to double-check labels:\n" + page.RawText
	}
	return p
}

// pageSchema constrains the model output. Kept strict so a drifting response
// fails parsing instead of slipping bad rows into the pool.
const pageSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["panel_label", "sheet_number", "is_schematic_page", "wires", "components", "warnings"],
  "properties": {
    "panel_label": {"type": "string"},
    "sheet_number": {"type": "integer"},
    "is_schematic_page": {"type": "boolean"},
    "wires": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "from", "to"],
        "properties": {
          "id": {"type": "string"},
          "from": {"type": "string"},
          "to": {"type": "string"},
          "cable": {"type": "string"},
          "gauge": {"type": "string"},
          "color": {"type": "string"},
          "length_mm": {"type": "integer"},
          "terminal_a": {"type": "string"},
          "terminal_b": {"type": "string"},
          "note": {"type": "string"}
        }
      }
    },
    "components": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["ref"],
        "properties": {
          "ref": {"type": "string"},
          "description": {"type": "string"},
          "quantity": {"type": "integer"},
          "manufacturer": {"type": "string"},
          "part_number": {"type": "string"},
          "location": {"type": "string"},
          "note": {"type": "string"},
          "wires": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "warnings": {"type": "array", "items": {"type": "string"}}
  }
}`
