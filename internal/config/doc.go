// Package config defines the test plan consumed by noderig and loads it from
// YAML.
//
// A plan lists the runtime to use and an ordered list of scenarios. Each
// scenario boots its own set of nodes, so nothing is shared between them.
//
//	runtime:
//	  fetch_version: "0.9.4"      # or repo_path: ~/src/kinode
//	runtime_build_release: false
//	tests:
//	  - name: chat
//	    setup_package_paths: [~/pkgs/chat]
//	    test_packages:
//	      - path: ~/pkgs/chat_test
//	        grant_capabilities: ["chat:chat:template.os"]
//	    timeout_secs: 5
//	    network_router:
//	      port: 9001
//	      defects: None
//	    nodes:
//	      - port: 8080
//	        home: ~/nodes/first
//	        fake_node_name: first.dev
//	      - port: 8081
//	        home: ~/nodes/second
//	        fake_node_name: second.dev
//
// Paths beginning with "~/" are expanded against the user's home directory.
// The first node of a scenario is its master.
package config
