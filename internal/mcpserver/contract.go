package mcpserver

// ConfigFormatContract describes the metric config JSON that LLM consumers
// should produce when proposing changes to what is tracked.
const ConfigFormatContract = `# Tally Metric Config Contract

The tracked metrics are configured by a JSON array of categories.

## Structure

` + "```" + `json
[
  {
    "category": "Mental Health",
    "metrics": [
      { "id": "talk_friend", "label": "Spoke to Friend", "linkPackage": null, "linkScheme": null },
      { "id": "meditate", "label": "Meditated", "linkPackage": "com.calm.android", "linkScheme": "calm://" }
    ]
  }
]
` + "```" + `

## Rules

1. The top level is an array. Category order is display order.
2. Each category has a string ` + "`" + `category` + "`" + ` and an array ` + "`" + `metrics` + "`" + `.
3. Each metric has a non-empty string ` + "`" + `id` + "`" + ` and ` + "`" + `label` + "`" + `.
4. ` + "`" + `id` + "`" + ` values are unique across the whole config. They are the keys stored in
   daily scores, so renaming an id orphans its history; change ` + "`" + `label` + "`" + ` instead.
5. ` + "`" + `linkPackage` + "`" + ` and ` + "`" + `linkScheme` + "`" + ` are optional; use a string or null.
   The package is tried first, then the URL scheme.

## Scores

Each metric is scored per day with one of three levels: 0 (not done), 0.5 (partly), 1 (done).
An unscored metric is simply absent from that day's scores.
`
