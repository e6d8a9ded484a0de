// Package unifiedllm provides a provider-agnostic message model and adapters
// for the OpenAI, OpenRouter, Gemini and Anthropic chat APIs.
//
// # Architecture
//
// The package follows a layered architecture:
//
//   - Message model: Message, ToolCall, ToolDefinition and Reply
//   - Sanitizer: Sanitize turns a transcript into provider-ready WireMessages
//   - Provider adapters: one ProviderAdapter per ProviderKind, each owning a
//     two-way translation between WireMessages and its wire format
//   - Client: routes InvokeRequests by provider and applies Middleware
//
// # Quick Start
//
//	client := unifiedllm.NewDefaultClient(
//	    unifiedllm.ProfileFileResolver{Path: unifiedllm.DefaultProfilePath()},
//	    nil, nil,
//	    unifiedllm.WithDefaultProvider(unifiedllm.ProviderAnthropic),
//	)
//
//	reply, err := client.Invoke(ctx, unifiedllm.InvokeRequest{
//	    Credential: os.Getenv("ANTHROPIC_API_KEY"),
//	    Messages:   unifiedllm.Sanitize([]unifiedllm.Message{unifiedllm.UserMessage("Hello")}),
//	    MaxTokens:  512,
//	})
//	fmt.Println(reply.Content)
//
// # Tool call ids
//
// OpenAI and OpenRouter return their own tool call ids. Gemini has no ids, so
// the adapter mints "gemini_" ids; Anthropic ids are kept and a fallback is
// minted when one is missing. On the next turn the adapters encode those ids
// back into the provider's native shape so results stay correlated.
//
// # Error Handling
//
// Errors form a small hierarchy rooted at SDKError:
//
//   - ConfigurationError: missing or malformed credential or provider,
//     detected before any request is sent
//   - ProviderError: transport failure or non-2xx status; Body carries the
//     raw response
//   - AbortError: the caller's context ended the operation
//
// Use IsRetryable to decide whether RetryMiddleware should try again.
package unifiedllm
