// Package trigger is the dispatch-and-filtering engine of chattrigger.
//
// A [Trigger] pairs a named, persisted [Options] document with a [Strategy]
// implementation. Each inbound chat event is offered to every trigger by the
// [Engine]; the trigger runs its admission pipeline (enabled state,
// probability roll, user and room whitelists, ignore list) and, when the
// event survives, hands it to the strategy. A successful reply engages the
// trigger's [Cooldown]. Replies are sent through a [DelayedSender] that
// honours the configured delay.
//
// Triggers are constructed from [triggerstore.Record] values by a [Registry]
// that maps type tags to [Factory] functions.
package trigger
