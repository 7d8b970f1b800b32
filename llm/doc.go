// Package llm provides a provider-neutral layer over the chat completion APIs the toolkit talks to.
//
// The wrappers in the sub-packages (openai, siliconflow, dify) all reduce a provider's
// response, streamed or not, to a Result: the reasoning trace and the user-facing answer.
//
// # Core Concepts
//
//  1. Messages: Message is a role/content pair (user, assistant, system).
//
//  2. Requests: Request carries the model, the ordered messages, the stream flag and the
//     common sampling/thinking options. Provider extensions go through Extra untouched.
//
//  3. Invoker Interface: Invoke sends a Request and returns the accumulated Result once the
//     upstream response has ended.
//
//  4. Middleware: Middleware hooks wrap an Invoker for cross-cutting concerns such as logging.
//
//  5. Errors: Error classifies failures (HTTP status, network, decode) independently of the
//     provider that produced them.
//
// Usage Example
//
//	inv := llm.WrapWithMiddleware(
//	    siliconflow.NewClient(endpoint, token),
//	    llm.LoggingMiddleware("siliconflow", logger),
//	)
//
//	res, err := inv.Invoke(ctx, &llm.Request{
//	    Model:    "Qwen/QwQ-32B",
//	    Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Hello!")},
//	    Stream:   true,
//	})
//
// # Extension Points
//
// To add a new provider:
//  1. Implement the Invoker interface
//  2. Feed streamed bodies through sse.Parser with an Extractor for the provider's records
//  3. Translate non-2xx responses to llm.Error with NewHTTPStatusError
package llm
