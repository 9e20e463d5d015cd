package bridge

// Events is the narrow surface a UI hands to SendMessage. Callbacks are
// invoked from the worker goroutine running the prompt; implementations
// forward to their own event loop.
//
// Contract: for every SendMessage call, Finished fires exactly once,
// last, no matter how the prompt ended. Message fires at most once per
// prompt with the final reply. ToolCall fires once per tool execution,
// before the tool runs. Error replaces Message when the prompt failed.
type Events interface {
	Message(sender, text string)
	ToolCall(description string)
	Error(message string)
	Finished()
}
