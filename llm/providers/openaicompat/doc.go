// Package openaicompat implements llm.Completer for OpenAI-compatible chat
// completion APIs.
//
// OpenAI and Groq ship as presets. Any other vendor that speaks the same
// protocol only needs a different base URL, model and, if required, custom
// headers:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.deepseek.com",
//	    Model:        "deepseek-chat",
//	}, logger)
//
// Non-2xx responses are mapped to *types.Error with the retryable flag set
// for rate limits and upstream failures.
package openaicompat
