// Package llm contains adapters for invoking the large language models used
// by the intent classifier. It abstracts away provider-specific APIs (OpenAI
// compatible endpoints, local python bridge) and normalizes request/response
// lifecycles, including the tool catalog exposed to the model.
package llm
