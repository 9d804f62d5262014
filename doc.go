/*
Package itpbot is a conversational assistant that guides a user through choosing a vehicle
and computes the Spanish vehicle transfer tax (ITP) for a region.

A Bot combines three pieces: a stateless dialogue machine (pkg/dialogue) that interprets one
message against the current step, a session manager (pkg/session) that serializes messages of
the same sender, and a calculation service (pkg/tax) backed by the regional rate table
(pkg/rates). Storage, locking and message delivery are ports with memory, redis, file, sqlite,
webhook and NATS adapters.

# Usage

	catalog := memory.NewCatalog()
	if _, err := catalog.Seed(ctx, vehicles); err != nil {
		log.Fatal(err)
	}

	bot, err := itpbot.New(catalog, itpbot.WithStore(memory.NewStore()))
	if err != nil {
		log.Fatal(err)
	}

	reply, err := bot.HandleMessage(ctx, "+34600000001", "Toyota")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Text)
*/
package itpbot
