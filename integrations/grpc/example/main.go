package main

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/aponysus/firstof/fetch"
	integration "github.com/aponysus/firstof/integrations/grpc"
)

func main() {
	f := fetch.New()
	interceptor := integration.UnaryClientInterceptor(f, nil)

	conn, err := grpc.NewClient("localhost:50051",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(interceptor),
	)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	fmt.Println("gRPC client initialized. (This example requires a running server to execute real calls).")
	fmt.Println("Simulating call to /Greeter/SayHello...")

	attempts := 0
	mockInvoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		attempts++
		fmt.Printf(" - Attempt %d...", attempts)
		if attempts < 3 {
			fmt.Println(" Failed (Unavailable)")
			return status.Error(codes.Unavailable, "transient failure")
		}
		fmt.Println(" Success!")
		return nil
	}

	err = interceptor(context.Background(), "/Greeter/SayHello", "req", "resp", conn, mockInvoker)
	if err != nil {
		fmt.Printf("Final result: Failed (%v)\n", err)
	} else {
		fmt.Println("Final result: Success")
	}
}
