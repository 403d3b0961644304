/*
Package runner prints run events and cleans the requests that start runs.

It sits between the assistant's event stream and the outside world: the
CLI drains a stream into a Handler, either a TextHandler for people or a
JSONHandler for pipes. SanitizeMessage, SanitizeDataset and SanitizePath
check every inbound request before it enters a run; a rejected field is
reported as a *domain.InputError naming it.

# Usage

	events := assistant.Invoke(ctx, dsflow.Request{Message: task})
	if err := runner.Drain(ctx, events, runner.NewTextHandler(os.Stdout)); err != nil {
		log.Fatal(err)
	}
*/
package runner
