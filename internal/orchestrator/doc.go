// Package orchestrator dispatches queued tasks to agents.
//
// A Dispatcher runs one loop per agent kind. Each loop claims the oldest pending
// task of its kind, invokes the agent under a timeout, retries transient failures
// with exponential backoff while the task stays running, and records the terminal
// outcome in the queue and the agent log.
//
// Example usage:
//
//	d := orchestrator.New(q, agent.NewInvokers(client), sink,
//		orchestrator.WithPolicy(policy.FromDispatch(cfg.Dispatch)),
//		orchestrator.WithLogger(log),
//	)
//	go d.Run(ctx)
//	defer d.Stop()
package orchestrator
