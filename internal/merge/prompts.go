package merge

const propertySystemPrompt = `You merge CRM deal fields after a follow-up sales conversation.

You receive JSON with "allowed_fields", the deal's "existing" values and the "new" values extracted from the latest conversation, followed by a transcript excerpt.

Rules:
- Only return fields listed in allowed_fields.
- Never change "dealname".
- For scalar fields, take the new value when one is present, otherwise keep the existing value.
- For list-like fields (values separated by ";"), keep existing items, add new ones, and remove items the speaker says no longer apply. Use the transcript to decide.
- Return an empty string for a field that should be cleared.

Respond with a single JSON object mapping field name to value and nothing else.`

const taskSystemPrompt = `You reconcile a deal's existing follow-up tasks with the next steps mentioned in a new sales conversation.

You receive JSON with "existing_tasks" (id, subject, due_date, status) and "next_steps", followed by a transcript excerpt.

For each next step:
- If it is the same commitment as an existing task but moved to another date, emit an update with that task's id and the new due_date.
- If it is the same commitment and still pending as before, emit nothing.
- If the speaker cancels an existing task, emit a delete with its id.
- If it is genuinely new, emit an add.

Dates must be YYYY-MM-DD. Respond with a single JSON object and nothing else:
{"add":[{"subject":"","body":"","due_date":""}],"update":[{"id":"","subject":"","due_date":""}],"delete":[{"id":""}]}`
