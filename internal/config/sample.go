package config

// Sample is the config written by pumpq init.
const Sample = `# pumpq API definition.
# base_url is an HTTP server, or sqlite:<path> for a sqlite database where
# each endpoint path is an SQL statement.
base_url: https://jsonplaceholder.typicode.com
cache_timeout: 60s
retries: 2
headers:
  Accept: application/json
tag_types: [users, posts]

endpoints:
  - name: getUser
    path: /users/{id}
    provides: ["users:{id}"]

  - name: getPosts
    path: /posts
    provides: [posts]

  - name: updateUser
    kind: mutation
    method: PUT
    path: /users/{id}
    invalidates:
      - {type: users, id: "{id}"}
`
