package mcpserver

// MarkupContract describes the note markup that LLM consumers should
// follow when creating or updating notes.
const MarkupContract = `# noteml Markup Contract

Every note stored in noteml is a well-formed XML document in the note
markup dialect. Files end with ` + "`" + `.enml` + "`" + `; metadata (title, tags, resources)
lives in a sidecar manifest managed by the server.

## Structure

` + "```" + `xml
<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">
<en-note>
  <h1>Human-readable title</h1>
  <div>Body text in plain XHTML elements.</div>
  <div><en-todo checked="false"/>An open task</div>
  <en-media type="image/png" hash="0cc175b9c0f1b6a831c399e269772661"/>
</en-note>
` + "```" + `

## Rules

1. **The root element is ` + "`" + `<en-note>` + "`" + `.** The XML declaration and doctype are optional.
2. **Markup must be well-formed.** Every element is closed, attributes are quoted,
   and ` + "`" + `&` + "`" + ` and ` + "`" + `<` + "`" + ` in text are escaped. Malformed markup is rejected.
3. **Four extension elements** are recognized; everything else is plain XHTML and
   passes through rendering unchanged:
   - ` + "`" + `<en-note>` + "`" + ` – the root, rendered as the XHTML body.
   - ` + "`" + `<en-media type="…" hash="…"/>` + "`" + ` – an embedded resource. ` + "`" + `hash` + "`" + ` is the
     lowercase hex MD5 of the payload and MUST match an attached resource.
   - ` + "`" + `<en-todo checked="true|false"/>` + "`" + ` – a checkbox.
   - ` + "`" + `<en-crypt cipher="AES" length="128">…</en-crypt>` + "`" + ` – an encrypted block, rendered
     as a placeholder.
4. **Title** comes from the ` + "`" + `title` + "`" + ` argument, else the first heading, else the first line.
5. **Tags** are lowercase, kebab-case. Inline ` + "`" + `#tag` + "`" + ` words in text are indexed too.
6. **Links** to other notes use ` + "`" + `<a href="folder/other.enml">` + "`" + `.
7. **Encoding** is UTF-8.

## Resources

- Attach payloads with the ` + "`" + `attach_resource` + "`" + ` tool. It returns a ` + "`" + `mediaTag` + "`" + ` ready to paste
  into the note, or appends it for you when ` + "`" + `embed` + "`" + ` is true.
- Never invent a ` + "`" + `hash` + "`" + `; only use values returned by the server.
- Remove resources with ` + "`" + `delete_resources` + "`" + `; their media tags lose the hash attribute.
- ` + "`" + `sync_resources` + "`" + ` re-points the Nth media tag at the Nth resource. It fails if there
  are more media tags than resources.
- Supported formats: png, jpeg, gif, webp, svg, pdf.

## Example

` + "```" + `xml
<en-note>
  <h1>Weekly standup 2025-01-20</h1>
  <div>Attendees: Alice, Bob. #meeting-notes</div>
  <en-media type="image/jpeg" hash="9e107d9d372bb6826bd81d3542a419d6"/>
  <div><en-todo checked="false"/>Review the <a href="project-x/design.enml">design doc</a></div>
  <div><en-todo checked="true"/>Update the roadmap</div>
</en-note>
` + "```" + `
`
