// Package prompt builds the model instructions for document sanitization.
// The prompt embeds one rule section per PII category, derived from the
// resolved profile, plus entity-tracking instructions so replacements stay
// consistent across a document.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/profile"
)

const header = `You are a document sanitization expert. Your task is to process the following document and remove or transform personally identifiable information (PII) according to the specific rules provided.

## CRITICAL INSTRUCTIONS

1. **Preserve Document Structure**: Maintain all headings, tables, lists, and formatting exactly as they appear.
2. **Consistency**: If the same entity (person, company, etc.) appears multiple times, use the SAME replacement throughout the entire document.
3. **Context Awareness**: Use context to identify PII that may not follow standard formats.
4. **Output Format**: Return ONLY the sanitized document content. Do not include explanations or metadata.

## PII HANDLING RULES
`

const entityTracking = `## ENTITY TRACKING

You MUST track entities to ensure consistency:
- If "John Smith" appears 5 times and the rule is KEEP_PART, all 5 instances must become "John 1"
- If a second person named "John Davis" appears, they become "John 2"
- If the rule is INVENT, invent ONE replacement name and use it for ALL occurrences
`

// ruleSections holds the instruction block for each legal category/action
// pair, carried over from the battle-tested originals.
var ruleSections = map[profile.Category]map[profile.Action]string{
	profile.PersonName: {
		profile.ActionDelete: `### Person Names (DELETE)
- Remove ALL person names completely
- Replace with: [NAME_REMOVED]
- Examples:
  - "John Smith sent the email" -> "[NAME_REMOVED] sent the email"
  - "Contact Sarah Johnson" -> "Contact [NAME_REMOVED]"`,
		profile.ActionInvent: `### Person Names (INVENT)
- Replace ALL person names with consistent synthetic names
- IMPORTANT: Same original name = same invented name throughout
- Examples:
  - "John Smith" -> "Alex Chen" (all occurrences)
  - "Sarah Johnson" -> "Maria Garcia" (all occurrences)
- Keep the invented names realistic and professional`,
		profile.ActionKeepPart: `### Person Names (KEEP_PART)
- Keep ONLY the first name
- Drop middle names and last names completely
- Number duplicate first names sequentially
- Examples:
  - "John Michael Smith" -> "John 1"
  - "John Andrew Davis" (different person) -> "John 2"
  - "Sarah Johnson" -> "Sarah 1"
- Track which original person maps to which number for consistency`,
	},
	profile.Email: {
		profile.ActionDelete: `### Email Addresses (DELETE)
- Remove ALL email addresses completely
- Replace with: [EMAIL_REMOVED]
- Examples:
  - "Contact john.smith@company.com" -> "Contact [EMAIL_REMOVED]"`,
		profile.ActionKeepPart: `### Email Addresses (KEEP_PART)
- Keep the domain name only
- Remove the local part (before @)
- Format: [EMAIL_REDACTED]@domain.com
- Examples:
  - "john.smith@company.com" -> "[EMAIL_REDACTED]@company.com"
  - "ceo@example.org" -> "[EMAIL_REDACTED]@example.org"`,
	},
	profile.Phone: {
		profile.ActionDelete: `### Phone Numbers (DELETE)
- Remove ALL phone numbers completely
- Replace with: [PHONE_REMOVED]
- Match all formats: international, local, with/without spaces/dashes
- Examples:
  - "+1 (555) 123-4567" -> "[PHONE_REMOVED]"
  - "555.123.4567" -> "[PHONE_REMOVED]"`,
		profile.ActionInvent: `### Phone Numbers (INVENT)
- Replace with synthetic phone numbers
- Maintain the same format and country/area code style
- Examples:
  - "+1 (555) 123-4567" -> "+1 (555) 987-6543"
  - "+61 2 1234 5678" -> "+61 2 8765 4321"`,
		profile.ActionKeepPart: `### Phone Numbers (KEEP_PART)
- Keep country code and area code only
- Remove remaining digits
- Format: +XX (XX) [REDACTED]
- Examples:
  - "+1 (555) 123-4567" -> "+1 (555) [REDACTED]"
  - "+61 2 1234 5678" -> "+61 (2) [REDACTED]"`,
	},
	profile.Company: {
		profile.ActionKeepPart: `### Company Names (KEEP_PART)
- Keep company names exactly as-is
- No modification needed
- Distinguish companies from person names using context`,
		profile.ActionInvent: `### Company Names (INVENT)
- Replace company names with consistent synthetic names
- IMPORTANT: Same original company = same invented name throughout
- Examples:
  - "Acme Corp" -> "TechFlow Industries" (all occurrences)
  - "Google" -> "DataSphere Inc" (all occurrences)
- Keep invented names realistic and business-appropriate`,
	},
	profile.Address: {
		profile.ActionDelete: `### Physical Addresses (DELETE)
- Remove ALL physical addresses completely
- Replace with: [ADDRESS_REMOVED]
- Match street addresses, PO boxes, city/state/zip combinations
- Examples:
  - "123 Main St, New York, NY 10001" -> "[ADDRESS_REMOVED]"
  - "PO Box 456, Seattle WA" -> "[ADDRESS_REMOVED]"`,
		profile.ActionInvent: `### Physical Addresses (INVENT)
- Replace with synthetic addresses
- Maintain same format and general location type
- Examples:
  - "123 Main St, New York, NY 10001" -> "456 Oak Ave, Chicago, IL 60601"
  - Keep consistency if same address appears multiple times`,
	},
	profile.Financial: {
		profile.ActionDelete: `### Financial Data (DELETE)
- Remove ALL financial data completely
- This includes: account numbers, credit card numbers, bank details, specific monetary amounts tied to individuals
- Replace with: [FINANCIAL_REMOVED]
- Note: General business figures or statistics may be kept unless tied to specific individuals`,
		profile.ActionInvent: `### Financial Data (INVENT)
- Replace financial data with synthetic values
- Maintain same format (e.g., 16-digit card numbers, account number patterns)
- For amounts, use similar order of magnitude`,
	},
	profile.IDNumbers: {
		profile.ActionDelete: `### ID Numbers (DELETE)
- Remove ALL identification numbers completely
- This includes: employee IDs, customer IDs, SSN/TFN, passport numbers, driver's license numbers
- Replace with: [ID_REMOVED]`,
		profile.ActionInvent: `### ID Numbers (INVENT)
- Replace ID numbers with synthetic values
- Maintain same format and length
- Examples:
  - "EMP-12345" -> "EMP-67890"
  - SSN format "123-45-6789" -> "987-65-4321"`,
	},
	profile.DateOfBirth: {
		profile.ActionDelete: `### Dates of Birth (DELETE)
- Remove ALL dates of birth completely
- Replace with: [DOB_REMOVED]
- Look for context clues like "born on", "DOB:", "birthday", age calculations`,
		profile.ActionInvent: `### Dates of Birth (INVENT)
- Replace with synthetic dates
- Maintain reasonable age range based on context
- Keep same date format as original`,
	},
}

// Build assembles the sanitization prompt for one chunk of document text
// under the given rules. Rule sections appear in the fixed category order
// so the prompt is deterministic for a given profile.
func Build(chunkText string, rules profile.Rules) string {
	var b strings.Builder
	b.WriteString(header)

	for _, c := range profile.Categories {
		action, ok := rules[c]
		if !ok {
			continue
		}
		section := ruleSections[c][action]
		if section == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(section)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(entityTracking)
	b.WriteString("\n## DOCUMENT TO SANITIZE\n\n")
	b.WriteString(chunkText)
	b.WriteString("\n\n## OUTPUT\n\nReturn the sanitized document below. Preserve all formatting (markdown headers, tables, lists, etc.):\n")

	return b.String()
}

// Frontmatter renders the YAML header prepended to the final sanitized
// output.
func Frontmatter(sourceType, model, profileName string, now time.Time) string {
	return fmt.Sprintf(`---
source_type: %s
sanitization_timestamp: %s
model_used: %s
profile_used: %s
---

`, sourceType, now.UTC().Format(time.RFC3339), model, profileName)
}
