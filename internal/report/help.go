package report

// HelpSection is a titled list of help entries. Term may be empty.
type HelpSection struct {
	Title   string
	Entries []HelpEntry
}

type HelpEntry struct {
	Term string
	Text string
}

// Help is the setup and troubleshooting guide that fatal failures point to.
var Help = []HelpSection{
	{
		Title: "Setup",
		Entries: []HelpEntry{
			{Text: "Go to https://www.notion.so/my-integrations and create a new integration."},
			{Text: "Copy the integration token. Every upload needs it."},
			{Text: `Open the target database. It must have two columns named "Title" and "tags" (case-sensitive).`},
			{Text: `Use the "..." menu in the top right of the database, select "Add connections" and choose your integration.`},
			{Text: "Copy the database ID from its URL, the part after the workspace name and before the question mark."},
		},
	},
	{
		Title: "Required information",
		Entries: []HelpEntry{
			{Term: "Notion token", Text: "The integration token copied during setup."},
			{Term: "Database ID", Text: "The ID of the target Notion database."},
			{Term: "Tags", Text: "Optional, comma separated."},
		},
	},
	{
		Title: "Troubleshooting",
		Entries: []HelpEntry{
			{Term: "credential invalid", Text: "The token is invalid or expired. Generate a new one on the integrations page and copy it completely."},
			{Term: "collection id must be a valid unique identifier", Text: "The database ID is malformed. Copy it again from the database URL."},
			{Term: "<column> not found in target collection", Text: `The database lacks a required column, or the integration has no access to it. Check the "Title" and "tags" columns and the database connections.`},
			{Term: "Skipped content", Text: "Notion limits paragraphs, code blocks and table cells to a fixed length. Offending blocks are removed and the page is still created; they are listed as skipped content."},
			{Term: "Unverified upload", Text: "The connection dropped before the server answered. The page was probably created; check the database before uploading again."},
		},
	},
}
